package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos/testutil"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/lineage"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
)

// Rollback behavior only shows on real transactions, so these tests run on
// the live connection and clean their rows up afterwards instead of using the
// usual tx-per-test harness.
func setupGateway(t *testing.T) (*Gateway, *gorm.DB, *domain.Conversation, *domain.User) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	convRepo := repos.NewConversationRepo(db, log)
	msgRepo := repos.NewMessageRepo(db, log)
	artRepo := repos.NewArtifactRepo(db, log)
	iterRepo := repos.NewIterationRepo(db, log)
	lin := lineage.NewManager(log, convRepo, iterRepo)
	gw := New(db, log, convRepo, msgRepo, artRepo, lin)

	user := &domain.User{ID: uuid.New(), Email: uuid.New().String() + "@example.com", Password: "x"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	conv := &domain.Conversation{ID: uuid.New(), UserID: user.ID, Title: domain.DefaultConversationTitle}
	if err := db.Create(conv).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	t.Cleanup(func() {
		db.Unscoped().Where("conversation_id = ?", conv.ID).Delete(&domain.DesignIteration{})
		db.Unscoped().Where("message_id IN (?)",
			db.Unscoped().Model(&domain.Message{}).Select("id").Where("conversation_id = ?", conv.ID),
		).Delete(&domain.Artifact{})
		db.Unscoped().Where("conversation_id = ?", conv.ID).Delete(&domain.Message{})
		db.Unscoped().Where("id = ?", conv.ID).Delete(&domain.Conversation{})
		db.Unscoped().Where("id = ?", user.ID).Delete(&domain.User{})
	})
	return gw, db, conv, user
}

func rootCommit(conv *domain.Conversation, user *domain.User) TurnCommit {
	return TurnCommit{
		ConversationID:   conv.ID,
		UserID:           user.ID,
		AssistantContent: "Aquí tienes tu cocina.",
		Artifacts: []ArtifactDraft{
			{Kind: domain.ArtifactKindImage, ImageData: []byte("png")},
			{Kind: domain.ArtifactKindSpecification, Content: "especificación"},
		},
		Change: &IterationChange{Kind: ChangeRoot, Prompt: "cocina moderna", Payload: []byte("png")},
		Title:  "Cocina moderna en L - 3.0m",
	}
}

func TestCommitTurnWritesEverythingTogether(t *testing.T) {
	gw, db, conv, user := setupGateway(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	res, err := gw.CommitTurn(dbc, rootCommit(conv, user))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Message == nil || res.Message.Role != domain.RoleAssistant || res.Message.Seq != 1 {
		t.Fatalf("assistant message wrong: %+v", res.Message)
	}
	if res.Iteration == nil || res.Iteration.Version != 1 {
		t.Fatalf("iteration wrong: %+v", res.Iteration)
	}
	if len(res.Artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(res.Artifacts))
	}

	var reloaded domain.Conversation
	if err := db.First(&reloaded, "id = ?", conv.ID).Error; err != nil {
		t.Fatalf("reload conversation: %v", err)
	}
	if reloaded.HeadIterationID == nil || *reloaded.HeadIterationID != res.Iteration.ID {
		t.Fatal("head pointer should land with the commit")
	}
	if reloaded.Title != "Cocina moderna en L - 3.0m" {
		t.Fatalf("title = %q", reloaded.Title)
	}

	// Design-bearing artifacts carry their lineage node in metadata.
	var img domain.Artifact
	if err := db.First(&img, "id = ?", res.Artifacts[0].ID).Error; err != nil {
		t.Fatalf("reload artifact: %v", err)
	}
	meta := string(img.Metadata)
	if want := res.Iteration.ID.String(); !strings.Contains(meta, want) {
		t.Fatalf("image metadata missing iteration id: %s", meta)
	}
}

func TestCommitTurnBranchAdvancesVersion(t *testing.T) {
	gw, db, conv, user := setupGateway(t)
	dbc := dbctx.Context{Ctx: context.Background()}

	first, err := gw.CommitTurn(dbc, rootCommit(conv, user))
	if err != nil {
		t.Fatalf("root commit: %v", err)
	}

	second, err := gw.CommitTurn(dbc, TurnCommit{
		ConversationID:   conv.ID,
		UserID:           user.ID,
		AssistantContent: "Más luz.",
		Change: &IterationChange{
			Kind:     ChangeBranch,
			ParentID: first.Iteration.ID,
			Prompt:   "más luz",
			Payload:  []byte("png2"),
		},
	})
	if err != nil {
		t.Fatalf("branch commit: %v", err)
	}
	if second.Iteration.Version != 2 {
		t.Fatalf("branch version = %d, want 2", second.Iteration.Version)
	}
	if *second.Iteration.ParentIterationID != first.Iteration.ID {
		t.Fatal("branch should hang off the root")
	}

	var reloaded domain.Conversation
	if err := db.First(&reloaded, "id = ?", conv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *reloaded.HeadIterationID != second.Iteration.ID {
		t.Fatal("head should follow the branch")
	}
}

func TestCommitTurnRollsBackOnFault(t *testing.T) {
	for _, stage := range []string{"seq", "message", "iteration", "artifacts"} {
		t.Run(stage, func(t *testing.T) {
			gw, db, conv, user := setupGateway(t)
			faulty := gw.WithFaultHook(func(s string) error {
				if s == stage {
					return fmt.Errorf("injected fault at %s", s)
				}
				return nil
			})

			_, err := faulty.CommitTurn(dbctx.Context{Ctx: context.Background()}, rootCommit(conv, user))
			if !errors.Is(err, pkgerrors.ErrCommitFailed) {
				t.Fatalf("expected ErrCommitFailed, got %v", err)
			}

			// Nothing from the aborted turn may be visible.
			var msgCount, iterCount int64
			db.Model(&domain.Message{}).Where("conversation_id = ?", conv.ID).Count(&msgCount)
			db.Model(&domain.DesignIteration{}).Where("conversation_id = ?", conv.ID).Count(&iterCount)
			if msgCount != 0 || iterCount != 0 {
				t.Fatalf("rollback leaked rows: %d messages, %d iterations", msgCount, iterCount)
			}

			var reloaded domain.Conversation
			if err := db.First(&reloaded, "id = ?", conv.ID).Error; err != nil {
				t.Fatalf("reload: %v", err)
			}
			if reloaded.HeadIterationID != nil {
				t.Fatal("head pointer leaked from an aborted commit")
			}
			if reloaded.NextSeq != 0 {
				t.Fatalf("seq counter leaked: %d", reloaded.NextSeq)
			}
		})
	}
}

func TestCommitTurnRejectsUnknownArtifactKind(t *testing.T) {
	gw, db, conv, user := setupGateway(t)

	in := rootCommit(conv, user)
	in.Artifacts = append(in.Artifacts, ArtifactDraft{Kind: "hologram"})

	_, err := gw.CommitTurn(dbctx.Context{Ctx: context.Background()}, in)
	if !errors.Is(err, pkgerrors.ErrUnsupportedArtifactKind) {
		t.Fatalf("expected ErrUnsupportedArtifactKind, got %v", err)
	}

	// Validation happens before any write.
	var msgCount int64
	db.Model(&domain.Message{}).Where("conversation_id = ?", conv.ID).Count(&msgCount)
	if msgCount != 0 {
		t.Fatalf("rejected commit wrote %d messages", msgCount)
	}
}

func TestCommitTurnWithoutDesignChange(t *testing.T) {
	gw, db, conv, user := setupGateway(t)

	res, err := gw.CommitTurn(dbctx.Context{Ctx: context.Background()}, TurnCommit{
		ConversationID:   conv.ID,
		UserID:           user.ID,
		AssistantContent: "Te recomiendo cuarzo.",
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Iteration != nil {
		t.Fatal("a text-only turn must not create an iteration")
	}

	var reloaded domain.Conversation
	if err := db.First(&reloaded, "id = ?", conv.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.HeadIterationID != nil {
		t.Fatal("head must stay unset without a design")
	}
	if reloaded.Title != domain.DefaultConversationTitle {
		t.Fatal("title must not change without an explicit rename")
	}
}
