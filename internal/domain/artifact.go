package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ArtifactKind string

const (
	ArtifactKindImage         ArtifactKind = "image"
	ArtifactKindSpecification ArtifactKind = "specification"
	ArtifactKindCostEstimate  ArtifactKind = "cost_estimate"
	ArtifactKindFloorPlan     ArtifactKind = "floor_plan"
)

func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactKindImage, ArtifactKindSpecification, ArtifactKindCostEstimate, ArtifactKindFloorPlan:
		return true
	default:
		return false
	}
}

// Artifact is a typed output attached to exactly one assistant message.
// Immutable once created.
type Artifact struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index" json:"message_id"`

	Kind    ArtifactKind `gorm:"type:text;column:kind;not null;index" json:"kind"`
	Title   string       `gorm:"type:text;not null;default:''" json:"title,omitempty"`
	Content string       `gorm:"type:text;not null;default:''" json:"content,omitempty"`

	ImageData []byte         `gorm:"type:bytea;column:image_data" json:"image_data,omitempty"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now();index" json:"created_at"`
}

func (Artifact) TableName() string { return "artifacts" }
