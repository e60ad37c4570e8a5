package database

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RequireProjectScope pins a connection to the project in the {pid} path
// value for the lifetime of the request. Requests with a malformed project
// id never reach the pool.
func RequireProjectScope(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	logger = logger.Named("project_scope")
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			projectID, err := uuid.Parse(r.PathValue("pid"))
			if err != nil {
				writeScopeError(w, http.StatusBadRequest, "invalid_project_id", "Invalid project ID format")
				return
			}

			scope, err := db.ScopeToProject(r.Context(), projectID)
			if err != nil {
				logger.Error("Failed to pin connection to project",
					zap.String("project_id", projectID.String()),
					zap.String("path", r.URL.Path),
					zap.Error(err))
				writeScopeError(w, http.StatusServiceUnavailable, "database_unavailable", "Schema mapping storage is unavailable")
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetProjectScope(r.Context(), scope)))
		}
	}
}

// writeScopeError writes the same body as handlers.ErrorResponse.
func writeScopeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
