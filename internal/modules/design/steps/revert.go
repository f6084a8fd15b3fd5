package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/yungbote/kitchenmaster-backend/internal/clients/redis"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/lineage"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/keylock"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

type RevertDeps struct {
	Log *logger.Logger

	Conversations repos.ConversationRepo
	Lineage       *lineage.Manager

	Locks *keylock.Map
	State redisclient.DesignStateCache
}

type RevertInput struct {
	UserID         uuid.UUID
	ConversationID uuid.UUID
	IterationID    uuid.UUID
}

// Revert moves the conversation's lineage head back to an earlier iteration.
// Nothing is deleted; the abandoned branch stays in history and the next
// design turn branches from the restored head.
func Revert(ctx context.Context, deps RevertDeps, in RevertInput) (*domain.DesignIteration, error) {
	if deps.Log == nil || deps.Conversations == nil || deps.Lineage == nil || deps.Locks == nil {
		return nil, fmt.Errorf("design revert: missing deps")
	}
	if in.UserID == uuid.Nil || in.ConversationID == uuid.Nil || in.IterationID == uuid.Nil {
		return nil, fmt.Errorf("design revert: missing ids: %w", pkgerrors.ErrInvalidArgument)
	}

	release, err := deps.Locks.TryAcquire(in.ConversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	dbc := dbctx.Context{Ctx: ctx}

	conv, err := deps.Conversations.GetByID(dbc, in.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.UserID != in.UserID {
		return nil, fmt.Errorf("conversation %s is not owned by caller: %w", in.ConversationID, pkgerrors.ErrUnauthorized)
	}

	if err := deps.Lineage.SetHead(dbc, in.ConversationID, in.IterationID); err != nil {
		return nil, err
	}
	head, err := deps.Lineage.ResolveHead(dbc, in.ConversationID)
	if err != nil {
		return nil, err
	}

	if deps.State != nil && head != nil {
		var params map[string]any
		if len(head.Parameters) > 0 {
			_ = json.Unmarshal(head.Parameters, &params)
		}
		err := deps.State.Set(ctx, in.UserID, in.ConversationID, redisclient.DesignState{
			IterationID: head.ID,
			Version:     head.Version,
			Prompt:      head.Prompt,
			Parameters:  params,
			UpdatedAt:   time.Now().UTC(),
		})
		if err != nil {
			deps.Log.Warn("design state cache refresh failed", "error", err.Error())
		}
	}
	return head, nil
}
