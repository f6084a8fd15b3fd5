package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

type ArtifactRepo interface {
	Create(dbc dbctx.Context, rows []*domain.Artifact) ([]*domain.Artifact, error)
	ListByMessageIDs(dbc dbctx.Context, messageIDs []uuid.UUID) ([]*domain.Artifact, error)
	DeleteByMessageIDs(dbc dbctx.Context, messageIDs []uuid.UUID) error
}

type artifactRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewArtifactRepo(db *gorm.DB, log *logger.Logger) ArtifactRepo {
	return &artifactRepo{db: db, log: log.With("repo", "ArtifactRepo")}
}

func (r *artifactRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *artifactRepo) Create(dbc dbctx.Context, rows []*domain.Artifact) ([]*domain.Artifact, error) {
	if len(rows) == 0 {
		return []*domain.Artifact{}, nil
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *artifactRepo) DeleteByMessageIDs(dbc dbctx.Context, messageIDs []uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	return r.handle(dbc).WithContext(dbc.Ctx).
		Where("message_id IN ?", messageIDs).
		Delete(&domain.Artifact{}).Error
}

func (r *artifactRepo) ListByMessageIDs(dbc dbctx.Context, messageIDs []uuid.UUID) ([]*domain.Artifact, error) {
	if len(messageIDs) == 0 {
		return []*domain.Artifact{}, nil
	}
	var out []*domain.Artifact
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.Artifact{}).
		Where("message_id IN ?", messageIDs).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
