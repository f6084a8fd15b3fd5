package lineage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

// Manager owns a conversation's design lineage: an arena of iterations in a
// flat table (parent as nullable FK) plus the head pointer on the
// conversation row. Version is parent.version + 1 with root = 1; it labels
// depth, not a total order, so sibling branches may share a version.
//
// Methods take dbctx.Context so callers (the persistence gateway in
// particular) can run them inside an enclosing transaction.
type Manager struct {
	log           *logger.Logger
	conversations repos.ConversationRepo
	iterations    repos.IterationRepo
}

func NewManager(log *logger.Logger, conversations repos.ConversationRepo, iterations repos.IterationRepo) *Manager {
	return &Manager{
		log:           log.With("component", "LineageManager"),
		conversations: conversations,
		iterations:    iterations,
	}
}

// CreateRoot registers the first iteration of a conversation and points the
// head at it. It is only legal while the conversation has no head.
func (m *Manager) CreateRoot(dbc dbctx.Context, conversationID uuid.UUID, prompt string, payload []byte, params datatypes.JSON) (*domain.DesignIteration, error) {
	conv, err := m.conversations.GetByID(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.HeadIterationID != nil && *conv.HeadIterationID != uuid.Nil {
		return nil, fmt.Errorf("conversation %s already has a lineage head: %w", conversationID, pkgerrors.ErrInvalidArgument)
	}
	iter := &domain.DesignIteration{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Prompt:         prompt,
		ImageData:      payload,
		Parameters:     normalizeParams(params),
		Version:        1,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := m.iterations.Create(dbc, iter); err != nil {
		return nil, err
	}
	if err := m.setHeadPointer(dbc, conversationID, iter.ID); err != nil {
		return nil, err
	}
	return iter, nil
}

// Branch registers a new iteration under parentID and moves the head to it.
// The parent may be any existing iteration of the conversation, which is how
// revert-and-edit produces sibling branches.
func (m *Manager) Branch(dbc dbctx.Context, parentID uuid.UUID, prompt string, payload []byte, params datatypes.JSON) (*domain.DesignIteration, error) {
	parent, err := m.iterations.GetByID(dbc, parentID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if now.Before(parent.CreatedAt) {
		now = parent.CreatedAt
	}
	pid := parent.ID
	iter := &domain.DesignIteration{
		ID:                uuid.New(),
		ConversationID:    parent.ConversationID,
		ParentIterationID: &pid,
		Prompt:            prompt,
		ImageData:         payload,
		Parameters:        normalizeParams(params),
		Version:           parent.Version + 1,
		CreatedAt:         now,
	}
	if _, err := m.iterations.Create(dbc, iter); err != nil {
		return nil, err
	}
	if err := m.setHeadPointer(dbc, parent.ConversationID, iter.ID); err != nil {
		return nil, err
	}
	return iter, nil
}

// SetHead points the conversation's head at an arbitrary existing iteration,
// used when the user resumes editing from an older version.
func (m *Manager) SetHead(dbc dbctx.Context, conversationID uuid.UUID, iterationID uuid.UUID) error {
	iter, err := m.iterations.GetByID(dbc, iterationID)
	if err != nil {
		return err
	}
	if iter.ConversationID != conversationID {
		return fmt.Errorf("iteration %s does not belong to conversation %s: %w", iterationID, conversationID, pkgerrors.ErrInvalidArgument)
	}
	return m.setHeadPointer(dbc, conversationID, iterationID)
}

// ResolveHead returns the current head iteration, or (nil, nil) when the
// conversation has no design yet. Absence of a head is a valid state.
func (m *Manager) ResolveHead(dbc dbctx.Context, conversationID uuid.UUID) (*domain.DesignIteration, error) {
	conv, err := m.conversations.GetByID(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.HeadIterationID == nil || *conv.HeadIterationID == uuid.Nil {
		return nil, nil
	}
	return m.iterations.GetByID(dbc, *conv.HeadIterationID)
}

// List returns every iteration of the conversation in deterministic order:
// version, then creation time, then id.
func (m *Manager) List(dbc dbctx.Context, conversationID uuid.UUID) ([]*domain.DesignIteration, error) {
	return m.iterations.ListByConversation(dbc, conversationID)
}

func (m *Manager) setHeadPointer(dbc dbctx.Context, conversationID uuid.UUID, iterationID uuid.UUID) error {
	return m.conversations.UpdateFields(dbc, conversationID, map[string]interface{}{
		"head_iteration_id": iterationID,
	})
}

func normalizeParams(params datatypes.JSON) datatypes.JSON {
	if len(params) == 0 {
		return datatypes.JSON([]byte(`{}`))
	}
	return params
}
