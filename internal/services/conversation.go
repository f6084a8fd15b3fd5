package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	redisclient "github.com/yungbote/kitchenmaster-backend/internal/clients/redis"
	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

// MessageWithArtifacts is a message plus the artifacts attached to it, in
// creation order.
type MessageWithArtifacts struct {
	Message   *domain.Message    `json:"message"`
	Artifacts []*domain.Artifact `json:"artifacts"`
}

// ConversationDetail is the full view a client reloads a conversation from.
type ConversationDetail struct {
	Conversation *domain.Conversation   `json:"conversation"`
	Messages     []MessageWithArtifacts `json:"messages"`
}

// DesignHistory is the lineage listing plus which node is current.
type DesignHistory struct {
	HeadIterationID *uuid.UUID                `json:"head_iteration_id,omitempty"`
	Iterations      []*domain.DesignIteration `json:"iterations"`
}

type ConversationService interface {
	Create(ctx context.Context, userID uuid.UUID, title string) (*domain.Conversation, error)
	Get(ctx context.Context, userID uuid.UUID, conversationID uuid.UUID, messageLimit int) (*ConversationDetail, error)
	List(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]*domain.Conversation, error)
	Delete(ctx context.Context, userID uuid.UUID, conversationID uuid.UUID) error
	ListDesigns(ctx context.Context, userID uuid.UUID, conversationID uuid.UUID) (*DesignHistory, error)
}

type conversationService struct {
	db  *gorm.DB
	log *logger.Logger

	conversations repos.ConversationRepo
	messages      repos.MessageRepo
	artifacts     repos.ArtifactRepo
	iterations    repos.IterationRepo

	state redisclient.DesignStateCache
}

func NewConversationService(
	db *gorm.DB,
	log *logger.Logger,
	conversations repos.ConversationRepo,
	messages repos.MessageRepo,
	artifacts repos.ArtifactRepo,
	iterations repos.IterationRepo,
	state redisclient.DesignStateCache,
) ConversationService {
	return &conversationService{
		db:            db,
		log:           log.With("service", "ConversationService"),
		conversations: conversations,
		messages:      messages,
		artifacts:     artifacts,
		iterations:    iterations,
		state:         state,
	}
}

func (s *conversationService) Create(ctx context.Context, userID uuid.UUID, title string) (*domain.Conversation, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id: %w", pkgerrors.ErrInvalidArgument)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = domain.DefaultConversationTitle
	}
	row := &domain.Conversation{
		ID:     uuid.New(),
		UserID: userID,
		Title:  title,
	}
	return s.conversations.Create(dbctx.Context{Ctx: ctx}, row)
}

func (s *conversationService) Get(ctx context.Context, userID uuid.UUID, conversationID uuid.UUID, messageLimit int) (*ConversationDetail, error) {
	dbc := dbctx.Context{Ctx: ctx}
	conv, err := s.conversations.GetForUser(dbc, conversationID, userID)
	if err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListByConversation(dbc, conversationID, messageLimit)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	arts, err := s.artifacts.ListByMessageIDs(dbc, ids)
	if err != nil {
		return nil, err
	}
	byMessage := make(map[uuid.UUID][]*domain.Artifact, len(arts))
	for _, a := range arts {
		byMessage[a.MessageID] = append(byMessage[a.MessageID], a)
	}

	detail := &ConversationDetail{
		Conversation: conv,
		Messages:     make([]MessageWithArtifacts, 0, len(msgs)),
	}
	for _, m := range msgs {
		detail.Messages = append(detail.Messages, MessageWithArtifacts{
			Message:   m,
			Artifacts: byMessage[m.ID],
		})
	}
	return detail, nil
}

func (s *conversationService) List(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]*domain.Conversation, error) {
	return s.conversations.ListByUser(dbctx.Context{Ctx: ctx}, userID, limit, offset)
}

// Delete removes the conversation and everything hanging off it. The rows go
// in one transaction; the cache entry afterwards, best-effort.
func (s *conversationService) Delete(ctx context.Context, userID uuid.UUID, conversationID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}

		if _, err := s.conversations.GetForUser(txc, conversationID, userID); err != nil {
			return err
		}

		// Head pointer references an iteration row; clear it before the
		// iterations go.
		if err := s.conversations.UpdateFields(txc, conversationID, map[string]interface{}{
			"head_iteration_id": nil,
		}); err != nil {
			return err
		}

		msgIDs, err := s.messages.ListIDs(txc, conversationID)
		if err != nil {
			return err
		}
		if err := s.artifacts.DeleteByMessageIDs(txc, msgIDs); err != nil {
			return err
		}
		if err := s.messages.DeleteByConversation(txc, conversationID); err != nil {
			return err
		}
		if err := s.iterations.DeleteByConversation(txc, conversationID); err != nil {
			return err
		}
		return s.conversations.Delete(txc, conversationID, userID)
	})
	if err != nil {
		return err
	}

	if s.state != nil {
		if err := s.state.Delete(ctx, userID, conversationID); err != nil {
			s.log.Warn("design state cache delete failed",
				"conversation_id", conversationID.String(),
				"error", err.Error(),
			)
		}
	}
	return nil
}

func (s *conversationService) ListDesigns(ctx context.Context, userID uuid.UUID, conversationID uuid.UUID) (*DesignHistory, error) {
	dbc := dbctx.Context{Ctx: ctx}
	conv, err := s.conversations.GetForUser(dbc, conversationID, userID)
	if err != nil {
		return nil, err
	}
	iters, err := s.iterations.ListByConversation(dbc, conversationID)
	if err != nil {
		return nil, err
	}
	return &DesignHistory{
		HeadIterationID: conv.HeadIterationID,
		Iterations:      iters,
	}, nil
}
