// Package audit keeps a best-effort trail of mutating registry actions.
package audit

import (
	"encoding/json"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/armory-pm/armory/internal/models"
)

// Audit actions.
const (
	ActionPublish = "publish"
	ActionLogin   = "login"
)

// Recorder writes audit events to the registry database.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder creates a recorder over the registry database.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record persists one event. Failures are logged and swallowed: the audit
// trail must never fail the action it describes.
func (r *Recorder) Record(action, resource string, details any) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = []byte("{}")
	}

	event := models.AuditEvent{
		Action:      action,
		Resource:    resource,
		DetailsJSON: string(detailsJSON),
		Timestamp:   time.Now().UTC(),
	}
	if err := r.db.Create(&event).Error; err != nil {
		slog.Warn("failed to record audit event",
			"action", action, "resource", resource, "error", err)
	}
}
