package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

// Publisher is where stream events go; the redis bus satisfies it so events
// reach subscribers on every replica, not just the one running the turn.
type Publisher interface {
	Publish(ctx context.Context, msg SSEMessage) error
}

// Coordinator owns the live streams. At most one stream may be open per
// conversation; a second Open while one is live fails with ErrSessionBusy.
type Coordinator struct {
	mu     sync.Mutex
	log    *logger.Logger
	pub    Publisher
	active map[uuid.UUID]*Stream
}

func NewCoordinator(log *logger.Logger, pub Publisher) *Coordinator {
	return &Coordinator{
		log:    log.With("component", "StreamCoordinator"),
		pub:    pub,
		active: make(map[uuid.UUID]*Stream),
	}
}

// Open claims the conversation's stream slot. The caller must finish the
// stream with Done or Fail; either releases the slot.
func (c *Coordinator) Open(ctx context.Context, conversationID uuid.UUID) (*Stream, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id: %w", pkgerrors.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.active[conversationID]; busy {
		return nil, fmt.Errorf("conversation %s already streaming: %w", conversationID, pkgerrors.ErrSessionBusy)
	}
	s := &Stream{
		ctx:            ctx,
		coordinator:    c,
		conversationID: conversationID,
		channel:        ConversationChannel(conversationID),
	}
	c.active[conversationID] = s
	return s, nil
}

// Active reports whether the conversation currently has a live stream.
func (c *Coordinator) Active(conversationID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.active[conversationID]
	return ok
}

func (c *Coordinator) release(conversationID uuid.UUID, s *Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.active[conversationID]; ok && cur == s {
		delete(c.active, conversationID)
	}
}

// Stream emits one turn's events in order. The terminal event (Done or Fail)
// fires exactly once; later calls are no-ops. Emission is best-effort: a
// subscriber that misses events reloads state over the REST surface.
type Stream struct {
	ctx            context.Context
	coordinator    *Coordinator
	conversationID uuid.UUID
	channel        string

	mu       sync.Mutex
	seq      int64
	finished bool
}

func (s *Stream) ConversationID() uuid.UUID { return s.conversationID }

// MessageCreated announces the persisted user message that opened the turn.
func (s *Stream) MessageCreated(data any) {
	s.emit(SSEEventMessageCreated, data)
}

// Delta carries one chunk of assistant text. Chunks are numbered so clients
// can detect gaps.
func (s *Stream) Delta(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	s.publish(SSEEventMessageDelta, map[string]any{"seq": seq, "delta": text})
}

func (s *Stream) ArtifactAdded(data any) {
	s.emit(SSEEventArtifactAdded, data)
}

func (s *Stream) IterationCreated(data any) {
	s.emit(SSEEventIterationCreated, data)
}

// Done finishes the stream successfully and releases the conversation slot.
func (s *Stream) Done(data any) {
	if !s.finish() {
		return
	}
	s.publish(SSEEventMessageDone, data)
}

// Fail finishes the stream with an error event and releases the slot.
func (s *Stream) Fail(message string) {
	if !s.finish() {
		return
	}
	s.publish(SSEEventMessageError, map[string]any{"message": message})
}

func (s *Stream) emit(event SSEEvent, data any) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.publish(event, data)
}

func (s *Stream) finish() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return false
	}
	s.finished = true
	s.coordinator.release(s.conversationID, s)
	return true
}

func (s *Stream) publish(event SSEEvent, data any) {
	if s.coordinator.pub == nil {
		return
	}
	err := s.coordinator.pub.Publish(s.ctx, SSEMessage{
		Channel: s.channel,
		Event:   event,
		Data:    data,
	})
	if err != nil {
		s.coordinator.log.Warn("stream publish failed",
			"conversation_id", s.conversationID.String(),
			"event", string(event),
			"error", err.Error(),
		)
	}
}
