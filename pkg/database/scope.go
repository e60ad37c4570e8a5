package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProjectScope is a pooled connection pinned to one project. Row level
// security on mapper_schema_mappings reads app.current_project_id, so every
// query on Conn sees only that project's schema mappings.
type ProjectScope struct {
	Conn      *pgxpool.Conn
	ProjectID uuid.UUID
}

// Close clears the project setting and hands the connection back to the
// pool. Safe to call more than once.
func (s *ProjectScope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_project_id")
	s.Conn.Release()
	s.Conn = nil
}

// ScopeToProject borrows a connection and pins it to projectID.
func (db *DB) ScopeToProject(ctx context.Context, projectID uuid.UUID) (*ProjectScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT set_config('app.current_project_id', $1, false)", projectID.String()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to pin connection to project %s: %w", projectID, err)
	}

	return &ProjectScope{Conn: conn, ProjectID: projectID}, nil
}
