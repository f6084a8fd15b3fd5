package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DefaultConversationTitle is replaced automatically once the first design
// lands.
const DefaultConversationTitle = "Nueva Cocina"

// Conversation owns an ordered message sequence and a lineage tree of design
// iterations. HeadIterationID is the lineage head pointer: the iteration the
// next edit branches from by default. Null until the first design exists.
type Conversation struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Title string `gorm:"column:title;not null;default:'Nueva Cocina'" json:"title"`

	HeadIterationID *uuid.UUID `gorm:"type:uuid;column:head_iteration_id;index" json:"head_iteration_id,omitempty"`

	// Concurrency-safe per-conversation message sequencing.
	NextSeq int64 `gorm:"column:next_seq;not null;default:0" json:"next_seq"`

	Metadata datatypes.JSON `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`

	LastMessageAt time.Time `gorm:"column:last_message_at;not null;default:now();index" json:"last_message_at"`

	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Conversation) TableName() string { return "conversations" }
