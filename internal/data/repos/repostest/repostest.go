// Package repostest holds in-memory repo implementations for tests that
// exercise pipeline logic without postgres. Behavior mirrors the gorm repos:
// same sentinel errors, same list ordering.
package repostest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
)

// ---------------- Conversations ----------------

type Conversations struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.Conversation
}

var _ repos.ConversationRepo = (*Conversations)(nil)

func NewConversations() *Conversations {
	return &Conversations{rows: make(map[uuid.UUID]*domain.Conversation)}
}

func (r *Conversations) Create(_ dbctx.Context, row *domain.Conversation) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	r.rows[row.ID] = &cp
	return row, nil
}

func (r *Conversations) GetByID(_ dbctx.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *Conversations) GetForUser(dbc dbctx.Context, id uuid.UUID, userID uuid.UUID) (*domain.Conversation, error) {
	row, err := r.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if row.UserID != userID {
		return nil, pkgerrors.ErrNotFound
	}
	return row, nil
}

func (r *Conversations) ListByUser(_ dbctx.Context, userID uuid.UUID, limit int, offset int) ([]*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Conversation
	for _, row := range r.rows {
		if row.UserID == userID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Conversations) NextSeq(_ dbctx.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return 0, pkgerrors.ErrNotFound
	}
	row.NextSeq++
	return row.NextSeq, nil
}

func (r *Conversations) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return pkgerrors.ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "head_iteration_id":
			switch hv := v.(type) {
			case uuid.UUID:
				cp := hv
				row.HeadIterationID = &cp
			case *uuid.UUID:
				row.HeadIterationID = hv
			case nil:
				row.HeadIterationID = nil
			}
		case "title":
			if s, ok := v.(string); ok {
				row.Title = s
			}
		case "last_message_at":
			if t, ok := v.(time.Time); ok {
				row.LastMessageAt = t
			}
		}
	}
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *Conversations) Delete(_ dbctx.Context, id uuid.UUID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.UserID != userID {
		return pkgerrors.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

// ---------------- Iterations ----------------

type Iterations struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.DesignIteration
}

var _ repos.IterationRepo = (*Iterations)(nil)

func NewIterations() *Iterations {
	return &Iterations{rows: make(map[uuid.UUID]*domain.DesignIteration)}
}

func (r *Iterations) Create(_ dbctx.Context, row *domain.DesignIteration) (*domain.DesignIteration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	r.rows[row.ID] = &cp
	return row, nil
}

func (r *Iterations) GetByID(_ dbctx.Context, id uuid.UUID) (*domain.DesignIteration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *Iterations) ListByConversation(_ dbctx.Context, conversationID uuid.UUID) ([]*domain.DesignIteration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.DesignIteration
	for _, row := range r.rows {
		if row.ConversationID == conversationID {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Version != out[j].Version {
			return out[i].Version < out[j].Version
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *Iterations) DeleteByConversation(_ dbctx.Context, conversationID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.ConversationID == conversationID {
			delete(r.rows, id)
		}
	}
	return nil
}

// ---------------- Messages ----------------

type Messages struct {
	mu   sync.Mutex
	rows []*domain.Message
}

var _ repos.MessageRepo = (*Messages)(nil)

func NewMessages() *Messages { return &Messages{} }

func (r *Messages) Create(_ dbctx.Context, rows []*domain.Message) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range rows {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		cp := *m
		r.rows = append(r.rows, &cp)
	}
	return rows, nil
}

func (r *Messages) ListRecent(_ dbctx.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, m := range r.rows {
		if m.ConversationID == conversationID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Messages) ListByConversation(dbc dbctx.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error) {
	out, err := r.ListRecent(dbc, conversationID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *Messages) ListIDs(_ dbctx.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for _, m := range r.rows {
		if m.ConversationID == conversationID {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (r *Messages) DeleteByConversation(_ dbctx.Context, conversationID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, m := range r.rows {
		if m.ConversationID != conversationID {
			kept = append(kept, m)
		}
	}
	r.rows = kept
	return nil
}

// ---------------- Memory records ----------------

type MemoryRecords struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.MemoryRecord
}

var _ repos.MemoryRepo = (*MemoryRecords)(nil)

func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{rows: make(map[uuid.UUID]*domain.MemoryRecord)}
}

func (r *MemoryRecords) Create(_ dbctx.Context, row *domain.MemoryRecord) (*domain.MemoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	r.rows[row.ID] = &cp
	return row, nil
}

func (r *MemoryRecords) GetByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*domain.MemoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.MemoryRecord, 0, len(ids))
	for _, id := range ids {
		if row, ok := r.rows[id]; ok {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRecords) CountByUser(_ dbctx.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if row.UserID == userID {
			n++
		}
	}
	return n, nil
}

// ---------------- Preferences ----------------

type Preferences struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*domain.UserPreferences
}

var _ repos.PreferencesRepo = (*Preferences)(nil)

func NewPreferences() *Preferences {
	return &Preferences{rows: make(map[uuid.UUID]*domain.UserPreferences)}
}

func (r *Preferences) GetByUser(_ dbctx.Context, userID uuid.UUID) (*domain.UserPreferences, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[userID]
	if !ok {
		return nil, pkgerrors.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *Preferences) Upsert(_ dbctx.Context, row *domain.UserPreferences) (*domain.UserPreferences, error) {
	if row == nil || row.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing preferences row")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	cp := *row
	r.rows[row.UserID] = &cp
	return row, nil
}
