package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/kitchenmaster-backend/internal/data/repos"
	"github.com/yungbote/kitchenmaster-backend/internal/domain"
	"github.com/yungbote/kitchenmaster-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/kitchenmaster-backend/internal/pkg/errors"
	"github.com/yungbote/kitchenmaster-backend/internal/platform/logger"
)

type PreferencesUpdate struct {
	PreferredStyles    []string       `json:"preferred_styles"`
	PreferredMaterials []string       `json:"preferred_materials"`
	BudgetRange        map[string]any `json:"budget_range"`
	Notes              string         `json:"notes"`
}

type PreferencesService interface {
	Get(ctx context.Context, userID uuid.UUID) (*domain.UserPreferences, error)
	Update(ctx context.Context, userID uuid.UUID, in PreferencesUpdate) (*domain.UserPreferences, error)
}

type preferencesService struct {
	log   *logger.Logger
	prefs repos.PreferencesRepo
}

func NewPreferencesService(log *logger.Logger, prefs repos.PreferencesRepo) PreferencesService {
	return &preferencesService{
		log:   log.With("service", "PreferencesService"),
		prefs: prefs,
	}
}

// Get returns an empty row rather than an error for users who never saved
// preferences.
func (s *preferencesService) Get(ctx context.Context, userID uuid.UUID) (*domain.UserPreferences, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id: %w", pkgerrors.ErrInvalidArgument)
	}
	row, err := s.prefs.GetByUser(dbctx.Context{Ctx: ctx}, userID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return &domain.UserPreferences{UserID: userID}, nil
	}
	return row, err
}

func (s *preferencesService) Update(ctx context.Context, userID uuid.UUID, in PreferencesUpdate) (*domain.UserPreferences, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id: %w", pkgerrors.ErrInvalidArgument)
	}
	row := &domain.UserPreferences{
		UserID:             userID,
		PreferredStyles:    mustJSON(in.PreferredStyles, `[]`),
		PreferredMaterials: mustJSON(in.PreferredMaterials, `[]`),
		BudgetRange:        mustJSON(in.BudgetRange, `{}`),
		Notes:              in.Notes,
	}
	return s.prefs.Upsert(dbctx.Context{Ctx: ctx}, row)
}

func mustJSON(v any, fallback string) datatypes.JSON {
	if v == nil {
		return datatypes.JSON([]byte(fallback))
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(fallback))
	}
	return datatypes.JSON(raw)
}
