package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-mapper/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-mapper/pkg/database"
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
)

// SchemaMappingRepository persists schema-mapping snapshots. The snapshot is
// stored whole as a JSONB document; name, target and item id are copied
// into columns for listing.
type SchemaMappingRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.SchemaMapping, error)
	List(ctx context.Context, projectID uuid.UUID) ([]*models.SchemaMapping, error)
	Upsert(ctx context.Context, m *models.SchemaMapping) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type schemaMappingRepository struct{}

// NewSchemaMappingRepository creates a new SchemaMappingRepository.
func NewSchemaMappingRepository() SchemaMappingRepository {
	return &schemaMappingRepository{}
}

var _ SchemaMappingRepository = (*schemaMappingRepository)(nil)

const schemaMappingColumns = `id, project_id, document, created_at, updated_at`

func (r *schemaMappingRepository) Get(ctx context.Context, id uuid.UUID) (*models.SchemaMapping, error) {
	scope, ok := database.GetProjectScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no project scope in context")
	}

	query := `SELECT ` + schemaMappingColumns + ` FROM mapper_schema_mappings WHERE id = $1`

	m, err := scanSchemaMapping(scope.Conn.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schema mapping: %w", err)
	}
	return m, nil
}

func (r *schemaMappingRepository) List(ctx context.Context, projectID uuid.UUID) ([]*models.SchemaMapping, error) {
	scope, ok := database.GetProjectScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no project scope in context")
	}

	query := `
		SELECT ` + schemaMappingColumns + `
		FROM mapper_schema_mappings
		WHERE project_id = $1
		ORDER BY updated_at DESC`

	rows, err := scope.Conn.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema mappings: %w", err)
	}
	defer rows.Close()

	mappings := make([]*models.SchemaMapping, 0)
	for rows.Next() {
		m, err := scanSchemaMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schema mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schema mappings: %w", err)
	}
	return mappings, nil
}

// Upsert inserts or replaces the snapshot and stamps CreatedAt/UpdatedAt
// from the database.
func (r *schemaMappingRepository) Upsert(ctx context.Context, m *models.SchemaMapping) error {
	scope, ok := database.GetProjectScope(ctx)
	if !ok {
		return fmt.Errorf("no project scope in context")
	}
	if m.ID == uuid.Nil || m.ProjectID == uuid.Nil {
		return fmt.Errorf("schema mapping requires id and project id")
	}

	document, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode schema mapping: %w", err)
	}

	now := time.Now()
	query := `
		INSERT INTO mapper_schema_mappings (
			id, project_id, name, target_knowledge_base, item_id, document,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    target_knowledge_base = EXCLUDED.target_knowledge_base,
		    item_id = EXCLUDED.item_id,
		    document = EXCLUDED.document,
		    updated_at = EXCLUDED.updated_at
		WHERE mapper_schema_mappings.project_id = EXCLUDED.project_id
		RETURNING created_at, updated_at`

	err = scope.Conn.QueryRow(ctx, query,
		m.ID,
		m.ProjectID,
		m.Name,
		m.TargetKnowledgeBase,
		nullString(m.ItemID),
		document,
		now,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// id exists under another project
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to save schema mapping: %w", err)
	}
	return nil
}

func (r *schemaMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	scope, ok := database.GetProjectScope(ctx)
	if !ok {
		return fmt.Errorf("no project scope in context")
	}

	result, err := scope.Conn.Exec(ctx, `DELETE FROM mapper_schema_mappings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schema mapping: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanSchemaMapping(row pgx.Row) (*models.SchemaMapping, error) {
	var (
		m        models.SchemaMapping
		document []byte
		id       uuid.UUID
		project  uuid.UUID
		created  time.Time
		updated  time.Time
	)
	if err := row.Scan(&id, &project, &document, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(document, &m); err != nil {
		return nil, fmt.Errorf("failed to decode schema mapping document: %w", err)
	}
	m.ID = id
	m.ProjectID = project
	m.CreatedAt = created
	m.UpdatedAt = updated
	return &m, nil
}

// nullString returns nil if the string is empty, otherwise returns the string pointer.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
