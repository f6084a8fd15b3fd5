package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/kitchenmaster-backend/internal/clients/engine"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/lineage"
	"github.com/yungbote/kitchenmaster-backend/internal/memory"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

type ContextDeps struct {
	Log *logger.Logger

	Engine engine.Client
	Memory *memory.Index

	Conversations repos.ConversationRepo
	Messages      repos.MessageRepo
	Preferences   repos.PreferencesRepo
	Lineage       *lineage.Manager
}

type ContextInput struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
	Prompt         string
	WindowSize     int
	RecallK        int
}

// SessionContext is the assembled view of everything the engine needs for a
// turn. Field order is fixed; Serialize renders the same bytes for the same
// inputs.
type SessionContext struct {
	Conversation  ContextConversation `json:"conversation"`
	CurrentDesign *ContextDesign      `json:"current_design"`
	Messages      []ContextMessage    `json:"messages"`
	Memories      []ContextMemory     `json:"memories"`
	Preferences   *ContextPreferences `json:"preferences"`
}

type ContextConversation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ContextDesign struct {
	IterationID string          `json:"iteration_id"`
	Version     int             `json:"version"`
	Prompt      string          `json:"prompt"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type ContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Seq     int64  `json:"seq"`
}

type ContextMemory struct {
	Content  string  `json:"content"`
	Category string  `json:"category"`
	Score    float32 `json:"score"`
}

type ContextPreferences struct {
	PreferredStyles    json.RawMessage `json:"preferred_styles,omitempty"`
	PreferredMaterials json.RawMessage `json:"preferred_materials,omitempty"`
	BudgetRange        json.RawMessage `json:"budget_range,omitempty"`
	Notes              string          `json:"notes,omitempty"`
}

// Serialize renders the context for the engine. Encoding is canonical JSON
// off fixed struct fields, so identical state yields identical bytes.
func (sc *SessionContext) Serialize() (string, error) {
	raw, err := json.Marshal(sc)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// BuildContext assembles the session context for one turn: ownership check,
// recent message window oldest-first, the lineage head (or none), recalled
// memories best-first, and stored preferences.
func BuildContext(ctx context.Context, deps ContextDeps, in ContextInput) (*SessionContext, *domain.Conversation, error) {
	if deps.Log == nil || deps.Conversations == nil || deps.Messages == nil || deps.Lineage == nil {
		return nil, nil, fmt.Errorf("context build: missing deps")
	}
	if in.UserID == uuid.Nil || in.ConversationID == uuid.Nil {
		return nil, nil, fmt.Errorf("context build: missing ids: %w", pkgerrors.ErrInvalidArgument)
	}
	window := in.WindowSize
	if window <= 0 {
		window = DefaultWindowSize
	}
	recallK := in.RecallK
	if recallK <= 0 {
		recallK = DefaultRecallK
	}

	dbc := dbctx.Context{Ctx: ctx}

	conv, err := deps.Conversations.GetByID(dbc, in.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if conv.UserID != in.UserID {
		return nil, nil, fmt.Errorf("conversation %s is not owned by caller: %w", in.ConversationID, pkgerrors.ErrUnauthorized)
	}

	sc := &SessionContext{
		Conversation: ContextConversation{
			ID:    conv.ID.String(),
			Title: conv.Title,
		},
	}

	// Newest `window` messages, presented oldest-first.
	msgs, err := deps.Messages.ListByConversation(dbc, in.ConversationID, window)
	if err != nil {
		return nil, nil, err
	}
	sc.Messages = make([]ContextMessage, 0, len(msgs))
	for _, m := range msgs {
		sc.Messages = append(sc.Messages, ContextMessage{
			Role:    m.Role,
			Content: m.Content,
			Seq:     m.Seq,
		})
	}

	head, err := deps.Lineage.ResolveHead(dbc, in.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if head != nil {
		sc.CurrentDesign = &ContextDesign{
			IterationID: head.ID.String(),
			Version:     head.Version,
			Prompt:      head.Prompt,
			Parameters:  json.RawMessage(head.Parameters),
		}
	}

	sc.Memories, err = recallMemories(ctx, deps, in.UserID, in.Prompt, recallK)
	if err != nil {
		return nil, nil, err
	}

	if deps.Preferences != nil {
		prefs, err := deps.Preferences.GetByUser(dbc, in.UserID)
		switch {
		case errors.Is(err, pkgerrors.ErrNotFound):
			// No stored preferences yet; the context just omits them.
		case err != nil:
			return nil, nil, err
		default:
			sc.Preferences = &ContextPreferences{
				PreferredStyles:    json.RawMessage(prefs.PreferredStyles),
				PreferredMaterials: json.RawMessage(prefs.PreferredMaterials),
				BudgetRange:        json.RawMessage(prefs.BudgetRange),
				Notes:              prefs.Notes,
			}
		}
	}

	return sc, conv, nil
}

// recallMemories embeds the prompt and queries the recall index. A user with
// no memories yields an empty slice; a dimension mismatch is fatal for the
// turn.
func recallMemories(ctx context.Context, deps ContextDeps, userID uuid.UUID, prompt string, k int) ([]ContextMemory, error) {
	if deps.Memory == nil || deps.Engine == nil || prompt == "" {
		return []ContextMemory{}, nil
	}
	embs, err := deps.Engine.Embed(ctx, []string{prompt})
	if err != nil {
		return nil, fmt.Errorf("embed prompt: %w", err)
	}
	if len(embs) != 1 {
		return nil, fmt.Errorf("embed prompt: got %d embeddings", len(embs))
	}
	scored, err := deps.Memory.Recall(ctx, userID, embs[0], k)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return []ContextMemory{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]ContextMemory, 0, len(scored))
	for _, s := range scored {
		out = append(out, ContextMemory{
			Content:  s.Record.Content,
			Category: s.Record.Category,
			Score:    s.Score,
		})
	}
	return out, nil
}
