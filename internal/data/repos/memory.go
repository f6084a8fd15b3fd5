package repos

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

type MemoryRepo interface {
	Create(dbc dbctx.Context, row *domain.MemoryRecord) (*domain.MemoryRecord, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.MemoryRecord, error)
	CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)
}

type memoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemoryRepo(db *gorm.DB, log *logger.Logger) MemoryRepo {
	return &memoryRepo{db: db, log: log.With("repo", "MemoryRepo")}
}

func (r *memoryRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *memoryRepo) Create(dbc dbctx.Context, row *domain.MemoryRecord) (*domain.MemoryRecord, error) {
	if row == nil {
		return nil, fmt.Errorf("missing memory row")
	}
	if err := r.handle(dbc).WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *memoryRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.MemoryRecord, error) {
	if len(ids) == 0 {
		return []*domain.MemoryRecord{}, nil
	}
	var out []*domain.MemoryRecord
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.MemoryRecord{}).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *memoryRepo) CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, fmt.Errorf("missing user_id")
	}
	var n int64
	if err := r.handle(dbc).WithContext(dbc.Ctx).
		Model(&domain.MemoryRecord{}).
		Where("user_id = ?", userID).
		Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
