package database

import (
	"context"

	"github.com/google/uuid"
)

type scopeKey struct{}

// GetProjectScope returns the project-pinned connection carried by ctx.
func GetProjectScope(ctx context.Context) (*ProjectScope, bool) {
	scope, ok := ctx.Value(scopeKey{}).(*ProjectScope)
	return scope, ok
}

// SetProjectScope attaches scope to ctx for repositories to pick up.
func SetProjectScope(ctx context.Context, scope *ProjectScope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// ProjectScopeProvider pins connections for code running outside a request,
// such as editor session saves and autosaves.
type ProjectScopeProvider struct {
	db *DB
}

func NewProjectScopeProvider(db *DB) *ProjectScopeProvider {
	return &ProjectScopeProvider{db: db}
}

// WithProjectScope returns ctx carrying a connection pinned to projectID and
// the func that releases it.
func (p *ProjectScopeProvider) WithProjectScope(ctx context.Context, projectID uuid.UUID) (context.Context, func(), error) {
	scope, err := p.db.ScopeToProject(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	return SetProjectScope(ctx, scope), scope.Close, nil
}
