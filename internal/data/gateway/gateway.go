package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/lineage"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

// ChangeKind says what a committed turn does to the conversation's lineage.
type ChangeKind string

const (
	ChangeNone   ChangeKind = "none"
	ChangeRoot   ChangeKind = "root"
	ChangeBranch ChangeKind = "branch"
)

// IterationChange is the lineage mutation a turn carries: either the first
// iteration of the conversation (root) or a child of ParentID (branch).
type IterationChange struct {
	Kind     ChangeKind
	ParentID uuid.UUID
	Prompt   string
	Payload  []byte
	Params   datatypes.JSON
}

// ArtifactDraft is an artifact before it has a message to hang off of.
type ArtifactDraft struct {
	Kind      domain.ArtifactKind
	Title     string
	Content   string
	ImageData []byte
	Metadata  datatypes.JSON
}

// TurnCommit is everything a finished turn writes durably.
type TurnCommit struct {
	ConversationID   uuid.UUID
	UserID           uuid.UUID
	AssistantContent string
	Artifacts        []ArtifactDraft
	Change           *IterationChange // nil when the turn produced no design
	Title            string           // non-empty renames the conversation
}

// TurnResult reports what CommitTurn wrote.
type TurnResult struct {
	Message   *domain.Message
	Artifacts []*domain.Artifact
	Iteration *domain.DesignIteration
}

// TurnCommitter is what the turn pipeline needs from the gateway; tests
// substitute an in-memory implementation.
type TurnCommitter interface {
	CommitTurn(dbc dbctx.Context, in TurnCommit) (*TurnResult, error)
}

// Gateway commits a turn's outputs in a single transaction: assistant
// message, its artifacts, the lineage change, and the conversation stamp all
// land together or not at all. The user's message is NOT part of this; it is
// persisted before generation starts and survives a failed turn.
type Gateway struct {
	db            *gorm.DB
	log           *logger.Logger
	conversations repos.ConversationRepo
	messages      repos.MessageRepo
	artifacts     repos.ArtifactRepo
	lineage       *lineage.Manager

	// faultHook, when set, is invoked between commit stages and aborts the
	// transaction by returning an error. Test seam only.
	faultHook func(stage string) error
}

func New(db *gorm.DB, log *logger.Logger, conversations repos.ConversationRepo, messages repos.MessageRepo, artifacts repos.ArtifactRepo, lin *lineage.Manager) *Gateway {
	return &Gateway{
		db:            db,
		log:           log.With("component", "PersistenceGateway"),
		conversations: conversations,
		messages:      messages,
		artifacts:     artifacts,
		lineage:       lin,
	}
}

// WithFaultHook returns a copy of the gateway that calls hook between commit
// stages. Used by tests to prove atomicity.
func (g *Gateway) WithFaultHook(hook func(stage string) error) *Gateway {
	cp := *g
	cp.faultHook = hook
	return &cp
}

// CommitTurn writes the turn atomically. Any failure rolls the whole turn
// back and surfaces as ErrCommitFailed with the cause wrapped.
func (g *Gateway) CommitTurn(dbc dbctx.Context, in TurnCommit) (*TurnResult, error) {
	if in.ConversationID == uuid.Nil || in.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing ids: %w", pkgerrors.ErrInvalidArgument)
	}
	for _, d := range in.Artifacts {
		if !d.Kind.Valid() {
			return nil, fmt.Errorf("artifact kind %q: %w", d.Kind, pkgerrors.ErrUnsupportedArtifactKind)
		}
	}
	var out TurnResult
	run := func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: dbc.Ctx, Tx: tx}

		seq, err := g.conversations.NextSeq(txc, in.ConversationID)
		if err != nil {
			return fmt.Errorf("advance seq: %w", err)
		}
		if err := g.fault("seq"); err != nil {
			return err
		}

		now := time.Now().UTC()
		msg := &domain.Message{
			ID:             uuid.New(),
			ConversationID: in.ConversationID,
			UserID:         in.UserID,
			Seq:            seq,
			Role:           domain.RoleAssistant,
			Content:        in.AssistantContent,
			CreatedAt:      now,
		}
		if _, err := g.messages.Create(txc, []*domain.Message{msg}); err != nil {
			return fmt.Errorf("create assistant message: %w", err)
		}
		out.Message = msg
		if err := g.fault("message"); err != nil {
			return err
		}

		if in.Change != nil && in.Change.Kind != ChangeNone {
			iter, err := g.applyChange(txc, in.ConversationID, *in.Change)
			if err != nil {
				return fmt.Errorf("apply lineage change: %w", err)
			}
			out.Iteration = iter
		}
		if err := g.fault("iteration"); err != nil {
			return err
		}

		rows := make([]*domain.Artifact, 0, len(in.Artifacts))
		for _, d := range in.Artifacts {
			rows = append(rows, &domain.Artifact{
				ID:        uuid.New(),
				MessageID: msg.ID,
				Kind:      d.Kind,
				Title:     d.Title,
				Content:   d.Content,
				ImageData: d.ImageData,
				Metadata:  g.artifactMetadata(d, out.Iteration),
				CreatedAt: now,
			})
		}
		if len(rows) > 0 {
			if _, err := g.artifacts.Create(txc, rows); err != nil {
				return fmt.Errorf("create artifacts: %w", err)
			}
		}
		out.Artifacts = rows
		if err := g.fault("artifacts"); err != nil {
			return err
		}

		updates := map[string]interface{}{"last_message_at": now}
		if in.Title != "" {
			updates["title"] = in.Title
		}
		if err := g.conversations.UpdateFields(txc, in.ConversationID, updates); err != nil {
			return fmt.Errorf("stamp conversation: %w", err)
		}
		return nil
	}

	var err error
	if dbc.Tx != nil {
		// Already inside a caller's transaction; join it.
		err = run(dbc.Tx)
	} else {
		err = g.db.WithContext(dbc.Ctx).Transaction(run)
	}
	if err != nil {
		if repos.IsUniqueViolation(err) {
			g.log.Warn("turn commit lost a seq race; caller should retry",
				"conversation_id", in.ConversationID.String(),
			)
		} else {
			g.log.Error("turn commit rolled back",
				"conversation_id", in.ConversationID.String(),
				"error", err.Error(),
			)
		}
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrCommitFailed, err)
	}
	return &out, nil
}

func (g *Gateway) applyChange(txc dbctx.Context, conversationID uuid.UUID, ch IterationChange) (*domain.DesignIteration, error) {
	switch ch.Kind {
	case ChangeRoot:
		return g.lineage.CreateRoot(txc, conversationID, ch.Prompt, ch.Payload, ch.Params)
	case ChangeBranch:
		if ch.ParentID == uuid.Nil {
			return nil, fmt.Errorf("branch without parent: %w", pkgerrors.ErrInvalidArgument)
		}
		return g.lineage.Branch(txc, ch.ParentID, ch.Prompt, ch.Payload, ch.Params)
	default:
		return nil, fmt.Errorf("unknown change kind %q: %w", ch.Kind, pkgerrors.ErrInvalidArgument)
	}
}

// artifactMetadata stamps the turn's iteration id into design-bearing
// artifacts so clients can map an image back to its lineage node.
func (g *Gateway) artifactMetadata(d ArtifactDraft, iter *domain.DesignIteration) datatypes.JSON {
	meta := map[string]any{}
	if len(d.Metadata) > 0 {
		if err := json.Unmarshal(d.Metadata, &meta); err != nil {
			meta = map[string]any{}
		}
	}
	if iter != nil && (d.Kind == domain.ArtifactKindImage || d.Kind == domain.ArtifactKindFloorPlan) {
		meta["iteration_id"] = iter.ID.String()
		meta["version"] = iter.Version
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(raw)
}

func (g *Gateway) fault(stage string) error {
	if g.faultHook == nil {
		return nil
	}
	return g.faultHook(stage)
}
