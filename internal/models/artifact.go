package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Artifact is the registry's record of one published binary. The composite
// unique index on (name, version, triple) is what makes the registry
// append-only: a second publish of the same key fails at the constraint, not
// at an application-level check.
type Artifact struct {
	ID         uuid.UUID `gorm:"type:text;primary_key" json:"id"`
	Name       string    `gorm:"not null;uniqueIndex:idx_artifact_key" json:"name"`
	Version    string    `gorm:"not null;uniqueIndex:idx_artifact_key" json:"version"`
	Triple     string    `gorm:"not null;uniqueIndex:idx_artifact_key" json:"triple"`
	Digest     string    `gorm:"not null;index" json:"digest"`
	Size       int64     `gorm:"not null" json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// BeforeCreate hook to generate UUID
func (a *Artifact) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
