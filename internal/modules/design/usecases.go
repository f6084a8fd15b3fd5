// Package design hosts the chat-turn pipeline: respond, revert, and the
// context/assembly steps they share.
package design

import (
	"context"
	"time"

	"github.com/yungbote/kitchenmaster-backend/internal/clients/engine"
	redisclient "github.com/yungbote/kitchenmaster-backend/internal/clients/redis"
	"github.com/yungbote/kitchenmaster-backend/internal/data/gateway"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/lineage"
	"github.com/yungbote/kitchenmaster-backend/internal/memory"
	"github.com/yungbote/kitchenmaster-backend/internal/modules/design/steps"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/keylock"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
	"github.com/yungbote/kitchenmaster-backend/internal/realtime"
)

type UsecasesDeps struct {
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

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

type (
	RespondInput  = steps.RespondInput
	RespondOutput = steps.RespondOutput

	RevertInput = steps.RevertInput
)

func (u Usecases) Respond(ctx context.Context, in RespondInput) (RespondOutput, error) {
	return steps.Respond(ctx, steps.RespondDeps{
		Log:               u.deps.Log,
		Engine:            u.deps.Engine,
		Memory:            u.deps.Memory,
		Conversations:     u.deps.Conversations,
		Messages:          u.deps.Messages,
		Preferences:       u.deps.Preferences,
		Lineage:           u.deps.Lineage,
		Gateway:           u.deps.Gateway,
		Locks:             u.deps.Locks,
		Streams:           u.deps.Streams,
		State:             u.deps.State,
		GenerationTimeout: u.deps.GenerationTimeout,
		ContextWindow:     u.deps.ContextWindow,
		RecallTopK:        u.deps.RecallTopK,
	}, in)
}

func (u Usecases) Revert(ctx context.Context, in RevertInput) (*domain.DesignIteration, error) {
	return steps.Revert(ctx, steps.RevertDeps{
		Log:           u.deps.Log,
		Conversations: u.deps.Conversations,
		Lineage:       u.deps.Lineage,
		Locks:         u.deps.Locks,
		State:         u.deps.State,
	}, in)
}
