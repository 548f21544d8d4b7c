package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditEvent records a mutating registry action (publish, login) for
// after-the-fact inspection. Events are written best-effort and never
// block the action they describe.
type AuditEvent struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Action      string    `gorm:"not null;index" json:"action"`
	Resource    string    `gorm:"not null" json:"resource"`
	DetailsJSON string    `json:"details_json"`
	Timestamp   time.Time `gorm:"not null" json:"timestamp"`
}

func (e *AuditEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
