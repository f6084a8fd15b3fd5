package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	MemoryCategoryPreference = "preference"
	MemoryCategoryFact       = "fact"
)

// MemoryRecord is a durable, append-only note about a user's long-term
// preferences, owned by the user across conversations. Records are never
// updated in place; a newer record supersedes an older one. The embedding is
// mirrored to the vector index under the user's namespace.
type MemoryRecord struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	Content   string         `gorm:"type:text;not null" json:"content"`
	Embedding datatypes.JSON `gorm:"type:jsonb;column:embedding;not null;default:'[]'" json:"-"`
	Category  string         `gorm:"type:text;column:category;not null;default:'preference';index" json:"category"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (MemoryRecord) TableName() string { return "memory_records" }
