package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/kitchenmaster-backend/internal/clients/engine"
	redisclient "github.com/yungbote/kitchenmaster-backend/internal/clients/redis"
	"github.com/yungbote/kitchenmaster-backend/internal/data/gateway"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/lineage"
	"github.com/yungbote/kitchenmaster-backend/internal/memory"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/keylock"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
	"github.com/yungbote/kitchenmaster-backend/internal/realtime"
)

const DefaultGenerationTimeout = 120 * time.Second

type RespondDeps struct {
	Log *logger.Logger

	Engine engine.Client
	Memory *memory.Index

	Conversations repos.ConversationRepo
	Messages      repos.MessageRepo
	Preferences   repos.PreferencesRepo
	Lineage       *lineage.Manager
	Gateway       gateway.TurnCommitter

	Locks   *keylock.Map
	Streams *realtime.Coordinator
	State   redisclient.DesignStateCache

	GenerationTimeout time.Duration
	ContextWindow     int
	RecallTopK        int
}

type RespondInput struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
	Prompt         string
	// RevertTo, when set, moves the lineage head to that iteration before
	// the turn runs, so the new design branches from it.
	RevertTo uuid.UUID
}

type RespondOutput struct {
	UserMessage *domain.Message         `json:"user_message"`
	Message     *domain.Message         `json:"message"`
	Artifacts   []*domain.Artifact      `json:"artifacts"`
	Iteration   *domain.DesignIteration `json:"iteration,omitempty"`
}

// Respond runs one chat turn end to end: serialize on the conversation,
// persist the user's message, build context, call the engine, assemble the
// outputs and commit them atomically. The caller's disconnect does not abort
// a turn that already reached the engine; the work finishes on a detached
// context bounded by GenerationTimeout.
func Respond(ctx context.Context, deps RespondDeps, in RespondInput) (RespondOutput, error) {
	out := RespondOutput{}
	if deps.Log == nil || deps.Engine == nil || deps.Conversations == nil || deps.Messages == nil ||
		deps.Lineage == nil || deps.Gateway == nil || deps.Locks == nil || deps.Streams == nil {
		return out, fmt.Errorf("design respond: missing deps")
	}
	if in.UserID == uuid.Nil || in.ConversationID == uuid.Nil {
		return out, fmt.Errorf("design respond: missing ids: %w", pkgerrors.ErrInvalidArgument)
	}
	if in.Prompt == "" {
		return out, fmt.Errorf("design respond: empty prompt: %w", pkgerrors.ErrInvalidArgument)
	}
	timeout := deps.GenerationTimeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}

	release, err := deps.Locks.TryAcquire(in.ConversationID)
	if err != nil {
		return out, err
	}
	defer release()

	// The turn must survive the caller hanging up once accepted, so all work
	// past this point runs on a detached context with its own deadline.
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	dbc := dbctx.Context{Ctx: bg}

	conv, err := deps.Conversations.GetByID(dbc, in.ConversationID)
	if err != nil {
		return out, err
	}
	if conv.UserID != in.UserID {
		return out, fmt.Errorf("conversation %s is not owned by caller: %w", in.ConversationID, pkgerrors.ErrUnauthorized)
	}

	if in.RevertTo != uuid.Nil {
		if err := deps.Lineage.SetHead(dbc, in.ConversationID, in.RevertTo); err != nil {
			return out, err
		}
	}

	// The user's message lands before generation starts and survives a
	// failed turn.
	userMsg, err := persistUserMessage(dbc, deps, in)
	if err != nil {
		return out, err
	}
	out.UserMessage = userMsg

	stream, err := deps.Streams.Open(bg, in.ConversationID)
	if err != nil {
		return out, err
	}
	stream.MessageCreated(map[string]any{
		"message_id": userMsg.ID.String(),
		"seq":        userMsg.Seq,
		"role":       userMsg.Role,
	})

	sc, conv, err := BuildContext(bg, ContextDeps{
		Log:           deps.Log,
		Engine:        deps.Engine,
		Memory:        deps.Memory,
		Conversations: deps.Conversations,
		Messages:      deps.Messages,
		Preferences:   deps.Preferences,
		Lineage:       deps.Lineage,
	}, ContextInput{
		UserID:         in.UserID,
		ConversationID: in.ConversationID,
		Prompt:         in.Prompt,
		WindowSize:     deps.ContextWindow,
		RecallK:        deps.RecallTopK,
	})
	if err != nil {
		stream.Fail("no se pudo preparar el contexto de la conversación")
		return out, err
	}
	serialized, err := sc.Serialize()
	if err != nil {
		stream.Fail("no se pudo preparar el contexto de la conversación")
		return out, err
	}

	resp, err := deps.Engine.GenerateTurn(bg, engine.TurnRequest{
		Context: serialized,
		Prompt:  in.Prompt,
	}, stream.Delta)
	if err != nil {
		stream.Fail("la generación del diseño falló, intenta de nuevo")
		return out, err
	}

	var head *domain.DesignIteration
	if sc.CurrentDesign != nil {
		headID, perr := uuid.Parse(sc.CurrentDesign.IterationID)
		if perr == nil {
			head = &domain.DesignIteration{ID: headID, Version: sc.CurrentDesign.Version}
		}
	}
	assembled, err := Assemble(AssembleDeps{Log: deps.Log}, AssembleInput{
		Prompt:       in.Prompt,
		Items:        resp.Items,
		Head:         head,
		CurrentTitle: conv.Title,
	})
	if err != nil {
		stream.Fail("la generación del diseño falló, intenta de nuevo")
		return out, err
	}

	committed, err := deps.Gateway.CommitTurn(dbc, gateway.TurnCommit{
		ConversationID:   in.ConversationID,
		UserID:           in.UserID,
		AssistantContent: resp.Reply,
		Artifacts:        assembled.Artifacts,
		Change:           assembled.Change,
		Title:            assembled.Title,
	})
	if err != nil {
		stream.Fail("no se pudo guardar la respuesta")
		return out, err
	}
	out.Message = committed.Message
	out.Artifacts = committed.Artifacts
	out.Iteration = committed.Iteration

	// Everything below is best-effort: the turn is already durable.
	storeMemoryNotes(bg, deps, in.UserID, assembled.MemoryNotes)
	applyPreferenceUpdates(dbc, deps, in.UserID, assembled.PreferenceUpdates)
	cacheDesignState(bg, deps, in.UserID, in.ConversationID, committed.Iteration, assembled.DesignParams)

	for _, a := range committed.Artifacts {
		stream.ArtifactAdded(map[string]any{
			"artifact_id": a.ID.String(),
			"kind":        string(a.Kind),
			"title":       a.Title,
		})
	}
	if committed.Iteration != nil {
		stream.IterationCreated(map[string]any{
			"iteration_id": committed.Iteration.ID.String(),
			"version":      committed.Iteration.Version,
		})
	}
	stream.Done(map[string]any{
		"message_id": committed.Message.ID.String(),
		"seq":        committed.Message.Seq,
	})

	return out, nil
}

func persistUserMessage(dbc dbctx.Context, deps RespondDeps, in RespondInput) (*domain.Message, error) {
	seq, err := deps.Conversations.NextSeq(dbc, in.ConversationID)
	if err != nil {
		return nil, err
	}
	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		UserID:         in.UserID,
		Seq:            seq,
		Role:           domain.RoleUser,
		Content:        in.Prompt,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := deps.Messages.Create(dbc, []*domain.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

func storeMemoryNotes(ctx context.Context, deps RespondDeps, userID uuid.UUID, notes []string) {
	if deps.Memory == nil || len(notes) == 0 {
		return
	}
	embs, err := deps.Engine.Embed(ctx, notes)
	if err != nil {
		deps.Log.Warn("memory capture skipped; embedding failed", "error", err.Error())
		return
	}
	for i, note := range notes {
		if i >= len(embs) {
			break
		}
		if _, err := deps.Memory.Store(ctx, userID, note, domain.MemoryCategoryPreference, embs[i]); err != nil {
			deps.Log.Warn("memory capture failed", "error", err.Error())
		}
	}
}

// applyPreferenceUpdates merges engine-extracted preference changes into the
// user's stored preferences. Styles and materials are unioned, budget and
// notes replaced when present.
func applyPreferenceUpdates(dbc dbctx.Context, deps RespondDeps, userID uuid.UUID, updates []map[string]any) {
	if deps.Preferences == nil || len(updates) == 0 {
		return
	}
	existing, err := deps.Preferences.GetByUser(dbc, userID)
	if err != nil && !errors.Is(err, pkgerrors.ErrNotFound) {
		deps.Log.Warn("preference capture skipped; load failed", "error", err.Error())
		return
	}
	row := &domain.UserPreferences{UserID: userID}
	if existing != nil {
		*row = *existing
	}

	styles := stringSet(row.PreferredStyles)
	materials := stringSet(row.PreferredMaterials)
	for _, u := range updates {
		for _, s := range paramStrings(u, "preferred_styles") {
			styles[s] = true
		}
		for _, m := range paramStrings(u, "preferred_materials") {
			materials[m] = true
		}
		if budget, ok := u["budget_range"].(map[string]any); ok && len(budget) > 0 {
			if raw, err := json.Marshal(budget); err == nil {
				row.BudgetRange = datatypes.JSON(raw)
			}
		}
		if notes := paramString(u, "notes"); notes != "" {
			row.Notes = notes
		}
	}
	row.PreferredStyles = setJSON(styles)
	row.PreferredMaterials = setJSON(materials)

	if _, err := deps.Preferences.Upsert(dbc, row); err != nil {
		deps.Log.Warn("preference capture failed", "error", err.Error())
	}
}

func stringSet(raw datatypes.JSON) map[string]bool {
	out := map[string]bool{}
	if len(raw) == 0 {
		return out
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, s := range items {
		if s != "" {
			out[s] = true
		}
	}
	return out
}

func setJSON(set map[string]bool) datatypes.JSON {
	items := make([]string, 0, len(set))
	for s := range set {
		items = append(items, s)
	}
	sort.Strings(items)
	raw, err := json.Marshal(items)
	if err != nil {
		return datatypes.JSON([]byte(`[]`))
	}
	return datatypes.JSON(raw)
}

func paramStrings(params map[string]any, key string) []string {
	v, ok := params[key]
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func cacheDesignState(ctx context.Context, deps RespondDeps, userID, conversationID uuid.UUID, iter *domain.DesignIteration, params map[string]any) {
	if deps.State == nil || iter == nil {
		return
	}
	err := deps.State.Set(ctx, userID, conversationID, redisclient.DesignState{
		IterationID: iter.ID,
		Version:     iter.Version,
		Prompt:      iter.Prompt,
		Parameters:  params,
		UpdatedAt:   time.Now().UTC(),
	})
	if err != nil {
		deps.Log.Warn("design state cache write failed", "error", err.Error())
	}
}
