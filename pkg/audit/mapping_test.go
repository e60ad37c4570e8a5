package audit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// setupTestLogger creates a test logger with an observer to capture log entries.
func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func decodeEvent(t *testing.T, entry observer.LoggedEntry) Event {
	t.Helper()
	raw, ok := entry.ContextMap()["event_json"].(string)
	require.True(t, ok, "event_json field missing")
	var event Event
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	return event
}

func TestNewMappingAuditor(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewMappingAuditor(logger)

	auditor.LogSchemaDeleted(uuid.New(), uuid.New())

	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "mapping_audit", recorded.All()[0].LoggerName)
}

func TestLogSchemaSaved(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewMappingAuditor(logger)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auditor.now = func() time.Time { return fixed }

	projectID, schemaID, sessionID := uuid.New(), uuid.New(), uuid.New()
	auditor.LogSchemaSaved(projectID, schemaID, sessionID, SaveDetails{Name: "Books", Labels: 1, Statements: 2, Autosave: true})

	require.Equal(t, 1, recorded.Len())
	entry := recorded.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "Schema mapping saved", entry.Message)
	assert.Equal(t, projectID.String(), entry.ContextMap()["project_id"])
	assert.Equal(t, true, entry.ContextMap()["autosave"])

	event := decodeEvent(t, entry)
	assert.Equal(t, EventSchemaSaved, event.EventType)
	assert.Equal(t, fixed, event.Timestamp)
	assert.Equal(t, schemaID, event.SchemaID)
	assert.Equal(t, sessionID, event.SessionID)
	assert.Equal(t, "info", event.Severity)
}

func TestLogSessionExpired(t *testing.T) {
	tests := []struct {
		name         string
		unsaved      bool
		wantLevel    zapcore.Level
		wantMessage  string
		wantSeverity string
	}{
		{"clean session", false, zapcore.InfoLevel, "Editor session expired", "info"},
		{"unsaved changes", true, zapcore.WarnLevel, "Editor session expired with unsaved changes", "warning"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, recorded := setupTestLogger(t)
			auditor := NewMappingAuditor(logger)

			auditor.LogSessionExpired(uuid.New(), uuid.New(), uuid.New(), 90*time.Minute, tt.unsaved)

			require.Equal(t, 1, recorded.Len())
			entry := recorded.All()[0]
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, tt.wantMessage, entry.Message)

			event := decodeEvent(t, entry)
			assert.Equal(t, EventSessionExpired, event.EventType)
			assert.Equal(t, tt.wantSeverity, event.Severity)
			details, ok := event.Details.(map[string]any)
			require.True(t, ok)
			assert.Equal(t, float64(5400), details["idle_seconds"])
			assert.Equal(t, tt.unsaved, details["unsaved"])
		})
	}
}

func TestLogSchemaDeleted(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewMappingAuditor(logger)

	projectID, schemaID := uuid.New(), uuid.New()
	auditor.LogSchemaDeleted(projectID, schemaID)

	entry := recorded.All()[0]
	event := decodeEvent(t, entry)
	assert.Equal(t, EventSchemaDeleted, event.EventType)
	assert.Equal(t, projectID, event.ProjectID)
	assert.Equal(t, schemaID, event.SchemaID)
	assert.Equal(t, uuid.Nil, event.SessionID)
}
