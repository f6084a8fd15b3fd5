package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UserPreferences holds the open preference fields folded into every built
// context: styles, materials, budget range, free-form notes.
type UserPreferences struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`

	PreferredStyles    datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"preferred_styles"`
	PreferredMaterials datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'" json:"preferred_materials"`
	BudgetRange        datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"budget_range"`
	Notes              string         `gorm:"type:text;not null;default:''" json:"notes,omitempty"`

	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (UserPreferences) TableName() string { return "user_preferences" }
