package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DesignIteration is one node of a conversation's lineage tree, stored
// arena-style: a flat table keyed by id with the parent as a nullable FK.
// Version is a depth label (parent.version + 1, root = 1); siblings may share
// a version and that is preserved.
type DesignIteration struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`

	ParentIterationID *uuid.UUID `gorm:"type:uuid;column:parent_iteration_id;index" json:"parent_iteration_id,omitempty"`

	Prompt     string         `gorm:"type:text;column:prompt;not null" json:"prompt"`
	ImageData  []byte         `gorm:"type:bytea;column:image_data" json:"image_data,omitempty"`
	Parameters datatypes.JSON `gorm:"type:jsonb;column:parameters;not null;default:'{}'" json:"parameters,omitempty"`

	Version int `gorm:"column:version;not null;default:1;index" json:"version"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (DesignIteration) TableName() string { return "design_iterations" }
