package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-mapper/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-mapper/pkg/audit"
	"github.com/ekaya-inc/ekaya-mapper/pkg/database"
	"github.com/ekaya-inc/ekaya-mapper/pkg/knowledgebase"
	"github.com/ekaya-inc/ekaya-mapper/pkg/mapping"
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/repositories"
	"github.com/ekaya-inc/ekaya-mapper/pkg/schema"
	"github.com/ekaya-inc/ekaya-mapper/pkg/validation"
)

// DefaultSessionTTL is how long an idle editor session is kept.
const DefaultSessionTTL = time.Hour

// ProjectScoper opens a project-pinned database context for a project.
// *database.ProjectScopeProvider satisfies it.
type ProjectScoper interface {
	WithProjectScope(ctx context.Context, projectID uuid.UUID) (context.Context, func(), error)
}

// PropertySource looks up knowledge-base properties.
// *knowledgebase.Client satisfies it.
type PropertySource interface {
	GetProperty(ctx context.Context, id, lang string) (*knowledgebase.Property, error)
	SearchProperties(ctx context.Context, query, lang string, limit int) ([]knowledgebase.SearchResult, error)
}

// SessionMetrics receives drop outcomes and the open-session count.
// *metrics.Metrics satisfies it.
type SessionMetrics interface {
	mapping.Recorder
	SetOpenSessions(n int)
}

// EditorConfig configures new editor sessions.
type EditorConfig struct {
	Limits          mapping.Limits
	Rules           []validation.Rule // nil uses validation.DefaultRules
	AutosaveOnDrop  bool
	SessionTTL      time.Duration
	DefaultLanguage string
}

// EditorSessionService manages editor sessions and their persistence.
type EditorSessionService interface {
	// Open starts a session for a new schema, or for a stored one when
	// schemaID is set.
	Open(ctx context.Context, projectID uuid.UUID, schemaID *uuid.UUID) (*EditorSession, error)

	// Get returns an open session of the project.
	Get(projectID, sessionID uuid.UUID) (*EditorSession, error)

	// Close discards a session. Unsaved changes are lost.
	Close(projectID, sessionID uuid.UUID) error

	// Save persists the session's document.
	Save(ctx context.Context, session *EditorSession) (models.SchemaMapping, error)

	// AddStatement appends a statement, filling in the property label and
	// datatype from the knowledge base when only the id is given.
	AddStatement(ctx context.Context, session *EditorSession, st models.StatementMapping) (string, error)

	// ResolveProperty looks up a property's label and datatype.
	ResolveProperty(ctx context.Context, propertyID string) (models.PropertyReference, error)

	// SearchProperties searches knowledge-base properties by label.
	SearchProperties(ctx context.Context, query string, limit int) ([]knowledgebase.SearchResult, error)

	// CheckConstraints evaluates knowledge-base constraints of every mapped
	// statement against its column's samples and stores the warnings.
	CheckConstraints(ctx context.Context, session *EditorSession) ([]models.ValidationIssue, error)

	// ListMappings returns the stored schema mappings of a project.
	ListMappings(ctx context.Context, projectID uuid.UUID) ([]*models.SchemaMapping, error)

	// DeleteMapping removes a stored schema mapping.
	DeleteMapping(ctx context.Context, projectID, schemaID uuid.UUID) error

	// EvictIdle closes sessions unused since before now minus the TTL.
	EvictIdle(now time.Time) int

	// RunJanitor evicts idle sessions periodically until ctx is done.
	RunJanitor(ctx context.Context, interval time.Duration)

	// Count returns the number of open sessions.
	Count() int
}

// ServiceOption configures an EditorSessionService.
type ServiceOption func(*editorSessionService)

// WithAuditor records saves, deletions and session expiry.
func WithAuditor(a *audit.MappingAuditor) ServiceOption {
	return func(s *editorSessionService) { s.auditor = a }
}

type editorSessionService struct {
	repo       repositories.SchemaMappingRepository
	scoper     ProjectScoper
	properties PropertySource
	metrics    SessionMetrics
	auditor    *audit.MappingAuditor
	validator  *mapping.Validator
	cfg        EditorConfig
	logger     *zap.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*EditorSession
}

// NewEditorSessionService creates an EditorSessionService. properties and
// metrics may be nil.
func NewEditorSessionService(
	repo repositories.SchemaMappingRepository,
	scoper ProjectScoper,
	properties PropertySource,
	metrics SessionMetrics,
	cfg EditorConfig,
	logger *zap.Logger,
	opts ...ServiceOption,
) EditorSessionService {
	if cfg.Rules == nil {
		cfg.Rules = validation.DefaultRules()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	s := &editorSessionService{
		repo:       repo,
		scoper:     scoper,
		properties: properties,
		metrics:    metrics,
		validator:  mapping.NewValidator(cfg.Limits),
		cfg:        cfg,
		logger:     logger.Named("editor-sessions"),
		sessions:   make(map[uuid.UUID]*EditorSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ EditorSessionService = (*editorSessionService)(nil)

func (s *editorSessionService) Open(ctx context.Context, projectID uuid.UUID, schemaID *uuid.UUID) (*EditorSession, error) {
	doc := schema.NewDocument()
	if schemaID != nil {
		m, err := s.load(ctx, projectID, *schemaID)
		if err != nil {
			return nil, err
		}
		doc.Load(*m)
	} else {
		doc.SetProject(projectID, uuid.New())
	}

	var opts []mapping.DropOption
	if s.metrics != nil {
		opts = append(opts, mapping.WithRecorder(s.metrics))
	}
	committer := &autosaveCommitter{service: s}
	if s.cfg.AutosaveOnDrop {
		opts = append(opts, mapping.WithCommitter(committer))
	}

	session := newEditorSession(projectID, doc, s.validator, s.cfg.Rules, s.logger, opts...)
	committer.sessionID = session.ID()

	s.mu.Lock()
	s.sessions[session.ID()] = session
	count := len(s.sessions)
	s.mu.Unlock()
	s.reportCount(count)

	s.logger.Info("Opened editor session",
		zap.String("session_id", session.ID().String()),
		zap.String("project_id", projectID.String()),
		zap.String("schema_id", doc.SchemaID().String()),
		zap.Bool("loaded", schemaID != nil))

	return session, nil
}

func (s *editorSessionService) load(ctx context.Context, projectID, schemaID uuid.UUID) (*models.SchemaMapping, error) {
	scopedCtx, cleanup, err := s.scopedCtx(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	m, err := s.repo.Get(scopedCtx, schemaID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("schema mapping %s: %w", schemaID, err)
		}
		return nil, fmt.Errorf("failed to load schema mapping: %w", err)
	}
	if m.ProjectID != projectID {
		return nil, fmt.Errorf("schema mapping %s: %w", schemaID, apperrors.ErrNotFound)
	}
	return m, nil
}

func (s *editorSessionService) Get(projectID, sessionID uuid.UUID) (*EditorSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.ProjectID() != projectID {
		return nil, apperrors.ErrSessionNotFound
	}
	session.touch()
	return session, nil
}

func (s *editorSessionService) Close(projectID, sessionID uuid.UUID) error {
	s.mu.Lock()
	session, ok := s.sessions[sessionID]
	if !ok || session.ProjectID() != projectID {
		s.mu.Unlock()
		return apperrors.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	count := len(s.sessions)
	s.mu.Unlock()
	s.reportCount(count)

	s.logger.Info("Closed editor session",
		zap.String("session_id", sessionID.String()),
		zap.String("project_id", projectID.String()))
	return nil
}

// Save persists the document without holding the session lock during I/O.
// A save that overlaps with edits leaves the document dirty.
func (s *editorSessionService) Save(ctx context.Context, session *EditorSession) (models.SchemaMapping, error) {
	session.lock()
	doc := session.document
	if err := checkCanSave(doc); err != nil {
		session.mu.Unlock()
		return models.SchemaMapping{}, err
	}
	doc.BeginSave()
	snapshot := doc.Snapshot()
	revision := doc.UpdatedAt()
	session.mu.Unlock()

	err := s.persist(ctx, &snapshot)

	session.lock()
	defer session.mu.Unlock()
	if err != nil {
		doc.FailSave()
		return models.SchemaMapping{}, err
	}
	if doc.UpdatedAt().Equal(revision) {
		doc.MarkAsSaved()
	} else {
		doc.FailSave()
	}

	s.logger.Info("Saved schema mapping",
		zap.String("session_id", session.ID().String()),
		zap.String("schema_id", snapshot.ID.String()),
		zap.Bool("dirty", doc.IsDirty()))
	s.auditSave(session.ID(), snapshot, false)

	return doc.Snapshot(), nil
}

func checkCanSave(doc *schema.Document) error {
	switch {
	case doc.IsSaving():
		return apperrors.ErrSaveInFlight
	case doc.ProjectID() == uuid.Nil:
		return apperrors.ErrNoProject
	case !doc.CanSave():
		return apperrors.ErrNothingToSave
	}
	return nil
}

func (s *editorSessionService) persist(ctx context.Context, m *models.SchemaMapping) error {
	scopedCtx, cleanup, err := s.scopedCtx(ctx, m.ProjectID)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := s.repo.Upsert(scopedCtx, m); err != nil {
		s.logger.Error("Failed to save schema mapping",
			zap.String("schema_id", m.ID.String()),
			zap.String("project_id", m.ProjectID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to save schema mapping: %w", err)
	}
	return nil
}

// scopedCtx reuses a project scope already on ctx, or opens one.
func (s *editorSessionService) scopedCtx(ctx context.Context, projectID uuid.UUID) (context.Context, func(), error) {
	if _, ok := database.GetProjectScope(ctx); ok {
		return ctx, func() {}, nil
	}
	scopedCtx, cleanup, err := s.scoper.WithProjectScope(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to acquire project scope: %w", err)
	}
	return scopedCtx, cleanup, nil
}

// autosaveCommitter saves the document after every accepted drop. It runs
// under the session lock.
type autosaveCommitter struct {
	service   *editorSessionService
	sessionID uuid.UUID
}

func (c *autosaveCommitter) Commit(ctx context.Context, doc *schema.Document) error {
	if err := checkCanSave(doc); err != nil {
		if errors.Is(err, apperrors.ErrNothingToSave) {
			return nil
		}
		return err
	}
	doc.BeginSave()
	snapshot := doc.Snapshot()
	if err := c.service.persist(ctx, &snapshot); err != nil {
		doc.FailSave()
		return err
	}
	doc.MarkAsSaved()
	c.service.auditSave(c.sessionID, snapshot, true)
	return nil
}

func (s *editorSessionService) auditSave(sessionID uuid.UUID, m models.SchemaMapping, autosave bool) {
	if s.auditor == nil {
		return
	}
	s.auditor.LogSchemaSaved(m.ProjectID, m.ID, sessionID, audit.SaveDetails{
		Name:       m.Name,
		Labels:     len(m.Labels),
		Statements: len(m.Statements),
		Autosave:   autosave,
	})
}

func (s *editorSessionService) AddStatement(ctx context.Context, session *EditorSession, st models.StatementMapping) (string, error) {
	if st.Property.ID != "" && (st.Property.Label == "" || st.Property.DataType == "") {
		ref, err := s.ResolveProperty(ctx, st.Property.ID)
		switch {
		case err == nil:
			if st.Property.Label == "" {
				st.Property.Label = ref.Label
			}
			if st.Property.DataType == "" {
				st.Property.DataType = ref.DataType
			}
		case errors.Is(err, apperrors.ErrNotFound):
			return "", err
		default:
			s.logger.Warn("Could not resolve property, keeping bare id",
				zap.String("property_id", st.Property.ID),
				zap.Error(err))
		}
	}
	return session.AddStatement(st), nil
}

func (s *editorSessionService) ResolveProperty(ctx context.Context, propertyID string) (models.PropertyReference, error) {
	if s.properties == nil {
		return models.PropertyReference{ID: propertyID}, fmt.Errorf("no knowledge base configured")
	}
	prop, err := s.properties.GetProperty(ctx, propertyID, s.cfg.DefaultLanguage)
	if err != nil {
		return models.PropertyReference{}, err
	}
	return prop.Reference(), nil
}

func (s *editorSessionService) SearchProperties(ctx context.Context, query string, limit int) ([]knowledgebase.SearchResult, error) {
	if s.properties == nil {
		return nil, fmt.Errorf("no knowledge base configured")
	}
	return s.properties.SearchProperties(ctx, query, s.cfg.DefaultLanguage, limit)
}

// constraintTarget is a statement value fed by a dataset column.
type constraintTarget struct {
	path       string
	propertyID string
	column     models.ColumnInfo
}

func (s *editorSessionService) CheckConstraints(ctx context.Context, session *EditorSession) ([]models.ValidationIssue, error) {
	if s.properties == nil {
		return nil, fmt.Errorf("no knowledge base configured")
	}

	// Collect under the lock, fetch without it.
	session.lock()
	var targets []constraintTarget
	for i, st := range session.document.Statements() {
		value, ok := st.Value.(models.ColumnValue)
		if !ok || st.Property.ID == "" {
			continue
		}
		column, ok := session.column(value.Column.ColumnName)
		if !ok {
			continue
		}
		targets = append(targets, constraintTarget{
			path:       schema.StatementValuePath(i),
			propertyID: st.Property.ID,
			column:     column,
		})
	}
	session.mu.Unlock()

	constraints := make(map[string][]models.PropertyConstraint)
	for _, t := range targets {
		if _, ok := constraints[t.propertyID]; ok {
			continue
		}
		prop, err := s.properties.GetProperty(ctx, t.propertyID, s.cfg.DefaultLanguage)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch constraints for %s: %w", t.propertyID, err)
		}
		constraints[t.propertyID] = prop.Constraints
	}

	var issues []models.ValidationIssue
	for _, t := range targets {
		issues = append(issues, validation.CheckConstraints(constraints[t.propertyID], t.column, t.path)...)
	}

	session.lock()
	session.issues.ClearErrorsByCode(models.CodeConstraintViolation)
	for _, issue := range issues {
		session.issues.Add(issue)
	}
	session.mu.Unlock()

	s.logger.Debug("Checked property constraints",
		zap.String("session_id", session.ID().String()),
		zap.Int("statements", len(targets)),
		zap.Int("properties", len(constraints)),
		zap.Int("violations", len(issues)))

	if issues == nil {
		issues = []models.ValidationIssue{}
	}
	return issues, nil
}

func (s *editorSessionService) ListMappings(ctx context.Context, projectID uuid.UUID) ([]*models.SchemaMapping, error) {
	scopedCtx, cleanup, err := s.scopedCtx(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	mappings, err := s.repo.List(scopedCtx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema mappings: %w", err)
	}
	return mappings, nil
}

func (s *editorSessionService) DeleteMapping(ctx context.Context, projectID, schemaID uuid.UUID) error {
	scopedCtx, cleanup, err := s.scopedCtx(ctx, projectID)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := s.repo.Delete(scopedCtx, schemaID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("schema mapping %s: %w", schemaID, err)
		}
		return fmt.Errorf("failed to delete schema mapping: %w", err)
	}

	s.logger.Info("Deleted schema mapping",
		zap.String("schema_id", schemaID.String()),
		zap.String("project_id", projectID.String()))
	if s.auditor != nil {
		s.auditor.LogSchemaDeleted(projectID, schemaID)
	}
	return nil
}

func (s *editorSessionService) EvictIdle(now time.Time) int {
	s.mu.Lock()
	var evicted []*EditorSession
	for id, session := range s.sessions {
		idle := now.Sub(session.LastUsed())
		if idle <= s.cfg.SessionTTL {
			continue
		}
		delete(s.sessions, id)
		evicted = append(evicted, session)
		s.logger.Debug("Evicting idle editor session",
			zap.String("session_id", id.String()),
			zap.Duration("idle_time", idle),
			zap.Duration("ttl", s.cfg.SessionTTL))
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if len(evicted) == 0 {
		return 0
	}
	s.reportCount(count)
	s.logger.Info("Evicted idle editor sessions",
		zap.Int("count", len(evicted)),
		zap.Int("remaining", count))

	// Session locks are taken only after the service lock is released.
	if s.auditor != nil {
		for _, session := range evicted {
			idle := now.Sub(session.LastUsed())
			session.mu.Lock()
			schemaID, unsaved := session.document.SchemaID(), session.document.IsDirty()
			session.mu.Unlock()
			s.auditor.LogSessionExpired(session.ProjectID(), schemaID, session.ID(), idle, unsaved)
		}
	}
	return len(evicted)
}

func (s *editorSessionService) RunJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		s.logger.Info("Editor session janitor started",
			zap.Duration("interval", interval),
			zap.Duration("ttl", s.cfg.SessionTTL))

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Editor session janitor stopped")
				return
			case now := <-ticker.C:
				s.EvictIdle(now)
			}
		}
	}()
}

func (s *editorSessionService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *editorSessionService) reportCount(n int) {
	if s.metrics != nil {
		s.metrics.SetOpenSessions(n)
	}
}
