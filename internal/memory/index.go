// Package memory is the durable recall layer for user design preferences.
// Records live append-only in postgres; their embeddings are mirrored to the
// vector index under a per-user namespace so recall never crosses users.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/kitchenmaster-backend/internal/clients/pinecone"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

const DefaultDimension = 768

// ScoredMemory pairs a recalled record with its similarity to the query.
type ScoredMemory struct {
	Record *domain.MemoryRecord
	Score  float32
}

// Index stores and recalls memory records. Dimension is fixed at
// construction; every vector passing through is checked against it and a
// mismatch is fatal for the operation, never silently padded or truncated.
type Index struct {
	log     *logger.Logger
	dim     int
	vec     pinecone.VectorStore
	records repos.MemoryRepo
}

func NewIndex(log *logger.Logger, dim int, vec pinecone.VectorStore, records repos.MemoryRepo) (*Index, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if dim <= 0 {
		dim = DefaultDimension
	}
	if vec == nil {
		return nil, fmt.Errorf("vector store required")
	}
	if records == nil {
		return nil, fmt.Errorf("memory repo required")
	}
	return &Index{
		log:     log.With("component", "MemoryIndex"),
		dim:     dim,
		vec:     vec,
		records: records,
	}, nil
}

func (ix *Index) Dimension() int { return ix.dim }

// Store appends a new record for the user and mirrors its embedding to the
// vector index. Newer records supersede older ones at recall time by scoring;
// nothing is updated in place.
func (ix *Index) Store(ctx context.Context, userID uuid.UUID, content string, category string, embedding []float32) (*domain.MemoryRecord, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id: %w", pkgerrors.ErrInvalidArgument)
	}
	if content == "" {
		return nil, fmt.Errorf("empty memory content: %w", pkgerrors.ErrInvalidArgument)
	}
	if err := ix.checkDim(len(embedding)); err != nil {
		return nil, err
	}
	if category != domain.MemoryCategoryPreference && category != domain.MemoryCategoryFact {
		category = domain.MemoryCategoryPreference
	}

	rawEmb, err := json.Marshal(embedding)
	if err != nil {
		return nil, err
	}
	row := &domain.MemoryRecord{
		ID:        uuid.New(),
		UserID:    userID,
		Content:   content,
		Embedding: datatypes.JSON(rawEmb),
		Category:  category,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := ix.records.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		return nil, err
	}

	err = ix.vec.Upsert(ctx, userID.String(), []pinecone.Vector{{
		ID:     row.ID.String(),
		Values: embedding,
		Metadata: map[string]any{
			"category":   category,
			"created_at": row.CreatedAt.Format(time.RFC3339),
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("mirror embedding: %w", err)
	}
	return row, nil
}

// Recall returns up to k records nearest the query, best first. Equal scores
// break newest-first so fresher preferences win. ErrNotFound when the user
// has no memories at all; an empty result for a user WITH memories is not an
// error.
func (ix *Index) Recall(ctx context.Context, userID uuid.UUID, query []float32, k int) ([]ScoredMemory, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id: %w", pkgerrors.ErrInvalidArgument)
	}
	if k <= 0 {
		k = 5
	}
	if err := ix.checkDim(len(query)); err != nil {
		return nil, err
	}

	n, err := ix.records.CountByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("user %s has no memories: %w", userID, pkgerrors.ErrNotFound)
	}

	matches, err := ix.vec.Query(ctx, userID.String(), query, k)
	if err != nil {
		return nil, err
	}

	scores := make(map[uuid.UUID]float32, len(matches))
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(m.ID)
		if err != nil {
			ix.log.Warn("skipping vector match with non-uuid id", "match_id", m.ID)
			continue
		}
		if _, dup := scores[id]; dup {
			continue
		}
		scores[id] = m.Score
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []ScoredMemory{}, nil
	}

	rows, err := ix.records.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ScoredMemory, 0, len(rows))
	for _, row := range rows {
		if row.UserID != userID {
			// The namespace should make this impossible; refuse anyway.
			ix.log.Warn("dropping cross-user match from recall",
				"record_id", row.ID.String(),
			)
			continue
		}
		out = append(out, ScoredMemory{Record: row, Score: scores[row.ID]})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].Record.CreatedAt.Equal(out[j].Record.CreatedAt) {
			return out[i].Record.CreatedAt.After(out[j].Record.CreatedAt)
		}
		return out[i].Record.ID.String() < out[j].Record.ID.String()
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (ix *Index) checkDim(got int) error {
	if got != ix.dim {
		return fmt.Errorf("embedding dimension %d, index expects %d: %w", got, ix.dim, pkgerrors.ErrDimensionMismatch)
	}
	return nil
}
