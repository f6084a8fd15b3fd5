package repos

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

type IterationRepo interface {
	Create(dbc dbctx.Context, row *domain.DesignIteration) (*domain.DesignIteration, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DesignIteration, error)
	// ListByConversation orders by (version, created_at, id) so siblings that
	// share a version number come back in a stable order.
	ListByConversation(dbc dbctx.Context, conversationID uuid.UUID) ([]*domain.DesignIteration, error)
	DeleteByConversation(dbc dbctx.Context, conversationID uuid.UUID) error
}

type iterationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIterationRepo(db *gorm.DB, log *logger.Logger) IterationRepo {
	return &iterationRepo{db: db, log: log.With("repo", "IterationRepo")}
}

func (r *iterationRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *iterationRepo) Create(dbc dbctx.Context, row *domain.DesignIteration) (*domain.DesignIteration, error) {
	if row == nil {
		return nil, fmt.Errorf("missing iteration row")
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *iterationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DesignIteration, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing iteration_id")
	}
	var out domain.DesignIteration
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *iterationRepo) ListByConversation(dbc dbctx.Context, conversationID uuid.UUID) ([]*domain.DesignIteration, error) {
	if conversationID == uuid.Nil {
		return nil, fmt.Errorf("missing conversation_id")
	}
	var out []*domain.DesignIteration
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.DesignIteration{}).
		Where("conversation_id = ?", conversationID).
		Order("version ASC, created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *iterationRepo) DeleteByConversation(dbc dbctx.Context, conversationID uuid.UUID) error {
	if conversationID == uuid.Nil {
		return fmt.Errorf("missing conversation_id")
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&domain.DesignIteration{}).Error
}
