package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

// DesignState is the hot snapshot of a conversation's current design, kept in
// redis so resuming a conversation doesn't have to reload the lineage. The
// database stays the source of truth; this cache is advisory and may lapse.
type DesignState struct {
	IterationID uuid.UUID      `json:"iteration_id"`
	Version     int            `json:"version"`
	Prompt      string         `json:"prompt"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type DesignStateCache interface {
	Get(ctx context.Context, userID, conversationID uuid.UUID) (*DesignState, error)
	Set(ctx context.Context, userID, conversationID uuid.UUID, state DesignState) error
	Delete(ctx context.Context, userID, conversationID uuid.UUID) error
}

const designStateTTL = 7 * 24 * time.Hour

type designStateCache struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewDesignStateCache(log *logger.Logger, rdb *goredis.Client) (DesignStateCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &designStateCache{
		log: log.With("service", "DesignStateCache"),
		rdb: rdb,
	}, nil
}

func designStateKey(userID, conversationID uuid.UUID) string {
	return fmt.Sprintf("design_state:%s:%s", userID, conversationID)
}

// Get returns (nil, nil) on a cache miss.
func (c *designStateCache) Get(ctx context.Context, userID, conversationID uuid.UUID) (*DesignState, error) {
	raw, err := c.rdb.Get(ctx, designStateKey(userID, conversationID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out DesignState
	if err := json.Unmarshal(raw, &out); err != nil {
		// Corrupt entry; drop it rather than poison callers.
		c.log.Warn("dropping unreadable design state entry",
			"conversation_id", conversationID.String(),
			"error", err.Error(),
		)
		_ = c.rdb.Del(ctx, designStateKey(userID, conversationID)).Err()
		return nil, nil
	}
	return &out, nil
}

func (c *designStateCache) Set(ctx context.Context, userID, conversationID uuid.UUID, state DesignState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, designStateKey(userID, conversationID), raw, designStateTTL).Err()
}

func (c *designStateCache) Delete(ctx context.Context, userID, conversationID uuid.UUID) error {
	return c.rdb.Del(ctx, designStateKey(userID, conversationID)).Err()
}
