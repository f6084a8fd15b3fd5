package repos

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

type PreferencesRepo interface {
	GetByUser(dbc dbctx.Context, userID uuid.UUID) (*domain.UserPreferences, error)
	Upsert(dbc dbctx.Context, row *domain.UserPreferences) (*domain.UserPreferences, error)
}

type preferencesRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPreferencesRepo(db *gorm.DB, log *logger.Logger) PreferencesRepo {
	return &preferencesRepo{db: db, log: log.With("repo", "PreferencesRepo")}
}

func (r *preferencesRepo) handle(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *preferencesRepo) GetByUser(dbc dbctx.Context, userID uuid.UUID) (*domain.UserPreferences, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var out domain.UserPreferences
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Where("user_id = ?", userID).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *preferencesRepo) Upsert(dbc dbctx.Context, row *domain.UserPreferences) (*domain.UserPreferences, error) {
	if row == nil || row.UserID == uuid.Nil {
		return nil, fmt.Errorf("missing preferences row")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if len(row.PreferredStyles) == 0 {
		row.PreferredStyles = datatypes.JSON([]byte(`[]`))
	}
	if len(row.PreferredMaterials) == 0 {
		row.PreferredMaterials = datatypes.JSON([]byte(`[]`))
	}
	if len(row.BudgetRange) == 0 {
		row.BudgetRange = datatypes.JSON([]byte(`{}`))
	}
	row.UpdatedAt = time.Now().UTC()
	err := r.handle(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"preferred_styles", "preferred_materials", "budget_range", "notes", "updated_at",
			}),
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}
