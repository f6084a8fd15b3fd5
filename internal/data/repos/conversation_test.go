package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/kitchenmaster-backend/internal/data/repos/testutil"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
)

func TestConversationCreateAndGet(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewConversationRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	user := testutil.SeedUser(t, tx)
	conv := testutil.SeedConversation(t, tx, user.ID)

	got, err := repo.GetByID(dbc, conv.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Title != domain.DefaultConversationTitle {
		t.Fatalf("title = %q", got.Title)
	}

	if _, err := repo.GetByID(dbc, uuid.New()); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("missing row should be ErrNotFound, got %v", err)
	}
}

func TestConversationGetForUserEnforcesOwnership(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewConversationRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	owner := testutil.SeedUser(t, tx)
	stranger := testutil.SeedUser(t, tx)
	conv := testutil.SeedConversation(t, tx, owner.ID)

	if _, err := repo.GetForUser(dbc, conv.ID, owner.ID); err != nil {
		t.Fatalf("owner lookup: %v", err)
	}
	if _, err := repo.GetForUser(dbc, conv.ID, stranger.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("foreign lookup should be ErrNotFound, got %v", err)
	}
}

func TestConversationNextSeqMonotonic(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewConversationRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	user := testutil.SeedUser(t, tx)
	conv := testutil.SeedConversation(t, tx, user.ID)

	for want := int64(1); want <= 5; want++ {
		seq, err := repo.NextSeq(dbc, conv.ID)
		if err != nil {
			t.Fatalf("next seq: %v", err)
		}
		if seq != want {
			t.Fatalf("seq = %d, want %d", seq, want)
		}
	}

	if _, err := repo.NextSeq(dbc, uuid.New()); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("missing conversation should be ErrNotFound, got %v", err)
	}
}

func TestConversationUpdateFieldsHead(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewConversationRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	user := testutil.SeedUser(t, tx)
	conv := testutil.SeedConversation(t, tx, user.ID)
	headID := uuid.New()

	err := repo.UpdateFields(dbc, conv.ID, map[string]interface{}{
		"head_iteration_id": headID,
		"title":             "Cocina moderna en L - 3.0m",
	})
	if err != nil {
		t.Fatalf("update fields: %v", err)
	}

	got, err := repo.GetByID(dbc, conv.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.HeadIterationID == nil || *got.HeadIterationID != headID {
		t.Fatalf("head = %v, want %s", got.HeadIterationID, headID)
	}
	if got.Title != "Cocina moderna en L - 3.0m" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestConversationDelete(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewConversationRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	user := testutil.SeedUser(t, tx)
	conv := testutil.SeedConversation(t, tx, user.ID)

	if err := repo.Delete(dbc, conv.ID, uuid.New()); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("foreign delete should be ErrNotFound, got %v", err)
	}
	if err := repo.Delete(dbc, conv.ID, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(dbc, conv.ID); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("deleted row should be gone, got %v", err)
	}
}
