// Package audit logs schema-mapping lifecycle events in structured JSON for
// downstream log pipelines.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType categorizes audited events for filtering and alerting.
type EventType string

const (
	// EventSchemaSaved is logged when a schema mapping is persisted.
	EventSchemaSaved EventType = "schema_saved"
	// EventSchemaDeleted is logged when a stored schema mapping is removed.
	EventSchemaDeleted EventType = "schema_deleted"
	// EventSessionExpired is logged when an idle editor session is evicted.
	EventSessionExpired EventType = "session_expired"
)

// Event is one audited occurrence.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType EventType `json:"event_type"`
	ProjectID uuid.UUID `json:"project_id"`
	SchemaID  uuid.UUID `json:"schema_id,omitempty"`
	SessionID uuid.UUID `json:"session_id,omitempty"`
	Details   any       `json:"details,omitempty"`
	Severity  string    `json:"severity"` // info, warning
}

// SaveDetails describes the content of a saved schema.
type SaveDetails struct {
	Name       string `json:"name"`
	Labels     int    `json:"labels"`
	Statements int    `json:"statements"`
	Autosave   bool   `json:"autosave"`
}

// MappingAuditor logs schema-mapping events under a dedicated logger name.
type MappingAuditor struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewMappingAuditor creates an auditor logging to the "mapping_audit" namespace.
func NewMappingAuditor(logger *zap.Logger) *MappingAuditor {
	return &MappingAuditor{
		logger: logger.Named("mapping_audit"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// LogSchemaSaved records a successful save at INFO level.
func (a *MappingAuditor) LogSchemaSaved(projectID, schemaID, sessionID uuid.UUID, details SaveDetails) {
	event := Event{
		Timestamp: a.now(),
		EventType: EventSchemaSaved,
		ProjectID: projectID,
		SchemaID:  schemaID,
		SessionID: sessionID,
		Details:   details,
		Severity:  "info",
	}

	a.logger.Info("Schema mapping saved",
		zap.String("event_json", marshal(event)),
		zap.String("project_id", projectID.String()),
		zap.String("schema_id", schemaID.String()),
		zap.String("session_id", sessionID.String()),
		zap.Bool("autosave", details.Autosave),
		zap.String("severity", event.Severity),
	)
}

// LogSchemaDeleted records the removal of a stored schema at INFO level.
func (a *MappingAuditor) LogSchemaDeleted(projectID, schemaID uuid.UUID) {
	event := Event{
		Timestamp: a.now(),
		EventType: EventSchemaDeleted,
		ProjectID: projectID,
		SchemaID:  schemaID,
		Severity:  "info",
	}

	a.logger.Info("Schema mapping deleted",
		zap.String("event_json", marshal(event)),
		zap.String("project_id", projectID.String()),
		zap.String("schema_id", schemaID.String()),
		zap.String("severity", event.Severity),
	)
}

// LogSessionExpired records the eviction of an idle session. Discarding
// unsaved changes is logged at WARN.
func (a *MappingAuditor) LogSessionExpired(projectID, schemaID, sessionID uuid.UUID, idle time.Duration, unsaved bool) {
	severity := "info"
	if unsaved {
		severity = "warning"
	}
	event := Event{
		Timestamp: a.now(),
		EventType: EventSessionExpired,
		ProjectID: projectID,
		SchemaID:  schemaID,
		SessionID: sessionID,
		Details: map[string]any{
			"idle_seconds": int64(idle.Seconds()),
			"unsaved":      unsaved,
		},
		Severity: severity,
	}

	fields := []zap.Field{
		zap.String("event_json", marshal(event)),
		zap.String("project_id", projectID.String()),
		zap.String("schema_id", schemaID.String()),
		zap.String("session_id", sessionID.String()),
		zap.Bool("unsaved", unsaved),
		zap.String("severity", severity),
	}
	if unsaved {
		a.logger.Warn("Editor session expired with unsaved changes", fields...)
		return
	}
	a.logger.Info("Editor session expired", fields...)
}

// marshal ignores the error: events hold only encodable types.
func marshal(event Event) string {
	b, _ := json.Marshal(event)
	return string(b)
}
