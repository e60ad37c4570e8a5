package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-mapper/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-mapper/pkg/audit"
	"github.com/ekaya-inc/ekaya-mapper/pkg/knowledgebase"
	"github.com/ekaya-inc/ekaya-mapper/pkg/mapping"
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/repositories"
	"github.com/ekaya-inc/ekaya-mapper/pkg/schema"
)

// --- Fakes ---

type fakeSchemaMappingRepo struct {
	mu        sync.Mutex
	mappings  map[uuid.UUID]models.SchemaMapping
	upserts   int
	upsertErr error
}

func newFakeSchemaMappingRepo() *fakeSchemaMappingRepo {
	return &fakeSchemaMappingRepo{mappings: make(map[uuid.UUID]models.SchemaMapping)}
}

var _ repositories.SchemaMappingRepository = (*fakeSchemaMappingRepo)(nil)

func (r *fakeSchemaMappingRepo) Get(_ context.Context, id uuid.UUID) (*models.SchemaMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mappings[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &m, nil
}

func (r *fakeSchemaMappingRepo) List(_ context.Context, projectID uuid.UUID) ([]*models.SchemaMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SchemaMapping
	for _, m := range r.mappings {
		if m.ProjectID == projectID {
			m := m
			out = append(out, &m)
		}
	}
	return out, nil
}

func (r *fakeSchemaMappingRepo) Upsert(_ context.Context, m *models.SchemaMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	if r.upsertErr != nil {
		return r.upsertErr
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	r.mappings[m.ID] = *m
	return nil
}

func (r *fakeSchemaMappingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mappings[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.mappings, id)
	return nil
}

type fakeScoper struct {
	mu       sync.Mutex
	projects []uuid.UUID
	closed   int
}

func (f *fakeScoper) WithProjectScope(ctx context.Context, projectID uuid.UUID) (context.Context, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, projectID)
	return ctx, func() {
		f.mu.Lock()
		f.closed++
		f.mu.Unlock()
	}, nil
}

type fakePropertySource struct {
	properties map[string]*knowledgebase.Property
	err        error
	calls      int
}

func (f *fakePropertySource) GetProperty(_ context.Context, id, _ string) (*knowledgebase.Property, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.properties[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

func (f *fakePropertySource) SearchProperties(_ context.Context, query, _ string, _ int) ([]knowledgebase.SearchResult, error) {
	var out []knowledgebase.SearchResult
	for _, p := range f.properties {
		if p.Label == query {
			out = append(out, knowledgebase.SearchResult{ID: p.ID, Label: p.Label})
		}
	}
	return out, nil
}

type fakeSessionMetrics struct {
	mu       sync.Mutex
	drops    []string
	sessions int
}

func (f *fakeSessionMetrics) ObserveVerdict(string) {}
func (f *fakeSessionMetrics) ObserveDrop(outcome string) {
	f.mu.Lock()
	f.drops = append(f.drops, outcome)
	f.mu.Unlock()
}
func (f *fakeSessionMetrics) SetOpenSessions(n int) {
	f.mu.Lock()
	f.sessions = n
	f.mu.Unlock()
}

// --- Fixture ---

type serviceFixture struct {
	repo       *fakeSchemaMappingRepo
	scoper     *fakeScoper
	properties *fakePropertySource
	metrics    *fakeSessionMetrics
	service    EditorSessionService
	projectID  uuid.UUID
}

func newServiceFixture(t *testing.T, cfg EditorConfig) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		repo:   newFakeSchemaMappingRepo(),
		scoper: &fakeScoper{},
		properties: &fakePropertySource{properties: map[string]*knowledgebase.Property{
			"P957": {
				ID:       "P957",
				Label:    "ISBN-10",
				DataType: models.ValueTypeExternalID,
				Constraints: []models.PropertyConstraint{{
					Type:       models.ConstraintFormat,
					Parameters: map[string][]string{models.ConstraintParamPattern: {`\d{9}[\dX]`}},
				}},
			},
		}},
		metrics:   &fakeSessionMetrics{},
		projectID: uuid.New(),
	}
	f.service = NewEditorSessionService(f.repo, f.scoper, f.properties, f.metrics, cfg, zap.NewNop())
	return f
}

func testColumns() []models.ColumnInfo {
	return []models.ColumnInfo{
		{Name: "title", StorageType: "VARCHAR", SampleValues: []string{"Dune"}},
		{Name: "isbn", StorageType: "VARCHAR", SampleValues: []string{"0441013597", "not-an-isbn"}},
		{Name: "pages", StorageType: "INTEGER", Nullable: true},
	}
}

func labelTarget() models.DropTarget {
	return models.DropTarget{
		Kind:          models.TargetLabel,
		Path:          schema.TermPath(models.TargetLabel, "en"),
		AcceptedTypes: []models.SchemaValueType{models.ValueTypeString, models.ValueTypeMonolingualText},
		Language:      "en",
		IsRequired:    true,
	}
}

func (f *serviceFixture) openWithLabel(t *testing.T) *EditorSession {
	t.Helper()
	session, err := f.service.Open(context.Background(), f.projectID, nil)
	require.NoError(t, err)
	session.SetColumns(testColumns())
	require.NoError(t, session.SetTargets([]models.DropTarget{labelTarget()}))
	_, err = session.StartDrag("title")
	require.NoError(t, err)
	feedback, err := session.Drop(context.Background(), labelTarget().Path)
	require.NoError(t, err)
	require.Equal(t, mapping.FeedbackSuccess, feedback.Type)
	return session
}

// --- Tests ---

func TestEditorSessionService_OpenNew(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})

	session, err := f.service.Open(context.Background(), f.projectID, nil)
	require.NoError(t, err)

	view := session.View()
	assert.Equal(t, f.projectID, view.ProjectID)
	assert.Equal(t, f.projectID, view.Mapping.ProjectID)
	assert.NotEqual(t, uuid.Nil, view.Mapping.ID)
	assert.Empty(t, view.Validation.Highlights, "untouched document has no highlights")
	assert.True(t, view.Validation.IsValid)
	assert.False(t, view.Validation.CanSave)
	assert.Equal(t, mapping.DragIdle, view.Drag.DragState)

	assert.Equal(t, 1, f.service.Count())
	assert.Equal(t, 1, f.metrics.sessions)
	assert.Empty(t, f.scoper.projects, "opening a new schema needs no database")
}

func TestEditorSessionService_OpenExisting(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	stored := models.SchemaMapping{
		ID:                  uuid.New(),
		ProjectID:           f.projectID,
		Name:                "Books",
		TargetKnowledgeBase: "wikidata",
		Labels:              map[string]models.ColumnMapping{"en": {ColumnName: "title", StorageType: "VARCHAR"}},
		UpdatedAt:           time.Now(),
	}
	require.NoError(t, f.repo.Upsert(context.Background(), &stored))

	session, err := f.service.Open(context.Background(), f.projectID, &stored.ID)
	require.NoError(t, err)

	snap := session.Snapshot()
	assert.Equal(t, "Books", snap.Name)
	assert.Equal(t, stored.Labels, snap.Labels)
	assert.False(t, session.Validation().IsDirty)
	assert.Equal(t, []uuid.UUID{f.projectID}, f.scoper.projects)
	assert.Equal(t, 1, f.scoper.closed, "project scope is released")
}

func TestEditorSessionService_OpenUnknownOrForeignSchema(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	missing := uuid.New()

	_, err := f.service.Open(context.Background(), f.projectID, &missing)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	foreign := models.SchemaMapping{ID: uuid.New(), ProjectID: uuid.New(), Name: "Other"}
	require.NoError(t, f.repo.Upsert(context.Background(), &foreign))
	_, err = f.service.Open(context.Background(), f.projectID, &foreign.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	assert.Zero(t, f.service.Count())
}

func TestEditorSessionService_GetAndClose(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	session, err := f.service.Open(context.Background(), f.projectID, nil)
	require.NoError(t, err)

	got, err := f.service.Get(f.projectID, session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)

	_, err = f.service.Get(uuid.New(), session.ID())
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound, "sessions are project-scoped")

	assert.ErrorIs(t, f.service.Close(uuid.New(), session.ID()), apperrors.ErrSessionNotFound)
	require.NoError(t, f.service.Close(f.projectID, session.ID()))
	assert.ErrorIs(t, f.service.Close(f.projectID, session.ID()), apperrors.ErrSessionNotFound)

	_, err = f.service.Get(f.projectID, session.ID())
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	assert.Equal(t, 0, f.metrics.sessions)
}

func TestEditorSession_DragAndDrop(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	session, err := f.service.Open(context.Background(), f.projectID, nil)
	require.NoError(t, err)
	session.SetColumns(testColumns())

	bad := labelTarget()
	bad.Language = ""
	assert.ErrorIs(t, session.SetTargets([]models.DropTarget{bad}), apperrors.ErrInvalidTarget)
	shadow := labelTarget()
	shadow.Kind = models.TargetAlias
	assert.ErrorIs(t, session.SetTargets([]models.DropTarget{labelTarget(), shadow}), apperrors.ErrInvalidTarget)
	require.NoError(t, session.SetTargets([]models.DropTarget{labelTarget()}))

	_, err = session.StartDrag("missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	view, err := session.StartDrag("pages")
	require.NoError(t, err)
	assert.Equal(t, mapping.DragDragging, view.DragState)
	assert.Equal(t, mapping.FeedbackInvalid, view.Feedback[labelTarget().Path])

	hover := session.Hover(labelTarget().Path)
	assert.False(t, hover.Valid)

	feedback, err := session.Drop(context.Background(), labelTarget().Path)
	require.NoError(t, err)
	assert.Equal(t, mapping.FeedbackError, feedback.Type)
	assert.Equal(t, mapping.DragIdle, session.Drag().DragState)

	overview := session.Validation()
	require.NotEmpty(t, overview.Errors)
	assert.Equal(t, models.ReasonIncompatibleDataType, overview.Errors[0].Code)

	_, err = session.StartDrag("title")
	require.NoError(t, err)
	hover = session.Hover(labelTarget().Path)
	assert.True(t, hover.Valid)
	assert.Equal(t, mapping.FeedbackValid, hover.Feedback)

	feedback, err = session.Drop(context.Background(), labelTarget().Path)
	require.NoError(t, err)
	assert.Equal(t, mapping.FeedbackSuccess, feedback.Type)

	snap := session.Snapshot()
	assert.Equal(t, models.ColumnMapping{ColumnName: "title", StorageType: "VARCHAR"}, snap.Labels["en"])
	for _, issue := range session.Validation().Errors {
		assert.NotEqual(t, labelTarget().Path, issue.Path, "accepted drop clears the rejected verdict")
	}
	assert.Equal(t, []string{mapping.OutcomeRejected, mapping.OutcomeAccepted}, f.metrics.drops)
}

func TestEditorSession_SetDragState(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	session, err := f.service.Open(context.Background(), f.projectID, nil)
	require.NoError(t, err)

	_, err = session.SetDragState("flying")
	assert.Error(t, err)

	view, err := session.SetDragState(mapping.DragDragging)
	require.NoError(t, err)
	assert.Equal(t, mapping.DragIdle, view.DragState, "no column, no drag")
}

func TestEditorSessionService_Save(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	ctx := context.Background()

	session, err := f.service.Open(ctx, f.projectID, nil)
	require.NoError(t, err)
	_, err = f.service.Save(ctx, session)
	assert.ErrorIs(t, err, apperrors.ErrNothingToSave)

	session = f.openWithLabel(t)
	saved, err := f.service.Save(ctx, session)
	require.NoError(t, err)
	assert.False(t, saved.UpdatedAt.IsZero())

	overview := session.Validation()
	assert.False(t, overview.IsDirty)
	assert.False(t, overview.IsSaving)
	assert.NotNil(t, overview.LastSaved)

	stored, err := f.repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, f.projectID, stored.ProjectID)
	assert.Contains(t, stored.Labels, "en")

	_, err = f.service.Save(ctx, session)
	assert.ErrorIs(t, err, apperrors.ErrNothingToSave)
}

func TestEditorSessionService_SaveFailureKeepsDirty(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	session := f.openWithLabel(t)
	f.repo.upsertErr = errors.New("connection refused")

	_, err := f.service.Save(context.Background(), session)
	require.Error(t, err)

	overview := session.Validation()
	assert.True(t, overview.IsDirty)
	assert.False(t, overview.IsSaving)
	assert.True(t, overview.CanSave)
}

func TestEditorSessionService_AutosaveOnDrop(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{AutosaveOnDrop: true})

	session := f.openWithLabel(t)

	assert.Equal(t, 1, f.repo.upserts)
	assert.False(t, session.Validation().IsDirty)

	f.repo.upsertErr = errors.New("connection refused")
	require.NoError(t, session.SetTargets([]models.DropTarget{labelTarget()}))
	_, err := session.StartDrag("isbn")
	require.NoError(t, err)
	feedback, err := session.Drop(context.Background(), labelTarget().Path)
	require.NoError(t, err)
	assert.Equal(t, mapping.FeedbackError, feedback.Type)
	assert.Equal(t, "isbn", session.Snapshot().Labels["en"].ColumnName, "mutation survives a failed save")
	assert.True(t, session.Validation().IsDirty)
}

func TestEditorSessionService_AddStatementResolvesProperty(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	ctx := context.Background()
	session, err := f.service.Open(ctx, f.projectID, nil)
	require.NoError(t, err)

	id, err := f.service.AddStatement(ctx, session, models.StatementMapping{
		Property: models.PropertyReference{ID: "P957"},
		Value:    models.ColumnValue{Column: models.ColumnMapping{ColumnName: "isbn", StorageType: "VARCHAR"}, Type: models.ValueTypeExternalID},
	})
	require.NoError(t, err)

	snap := session.Snapshot()
	require.Len(t, snap.Statements, 1)
	assert.Equal(t, id, snap.Statements[0].ID)
	assert.Equal(t, models.PropertyReference{ID: "P957", Label: "ISBN-10", DataType: models.ValueTypeExternalID}, snap.Statements[0].Property)
	assert.Equal(t, models.RankNormal, snap.Statements[0].Rank)

	_, err = f.service.AddStatement(ctx, session, models.StatementMapping{Property: models.PropertyReference{ID: "P0"}})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	f.properties.err = errors.New("connection refused")
	_, err = f.service.AddStatement(ctx, session, models.StatementMapping{Property: models.PropertyReference{ID: "P31"}})
	require.NoError(t, err, "an unreachable knowledge base keeps the bare id")
	assert.Len(t, session.Snapshot().Statements, 2)
}

func TestEditorSession_StatementOperations(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	session, err := f.service.Open(context.Background(), f.projectID, nil)
	require.NoError(t, err)

	id := session.AddStatement(models.StatementMapping{Property: models.PropertyReference{ID: "P957"}})
	overview := session.Validation()
	assert.Contains(t, pathsOf(overview.Errors), schema.StatementValuePath(0))

	require.NoError(t, session.SetStatementRank(id, models.RankPreferred))
	assert.Error(t, session.SetStatementRank(id, "best"))
	assert.ErrorIs(t, session.SetStatementRank("missing", models.RankNormal), apperrors.ErrNotFound)

	require.NoError(t, session.UpdateStatement(id, models.StatementMapping{
		Property: models.PropertyReference{ID: "P957"},
		Value:    models.ConstantValue{Value: "0441013597", Type: models.ValueTypeExternalID},
		Rank:     models.RankPreferred,
	}))
	assert.NotContains(t, pathsOf(session.Validation().Errors), schema.StatementValuePath(0))

	require.NoError(t, session.RemoveQualifier(id, 3), "out-of-range index is ignored")
	require.NoError(t, session.RemoveReference(id, 0))

	require.NoError(t, session.RemoveStatement(id))
	assert.Empty(t, session.Snapshot().Statements)
	assert.ErrorIs(t, session.RemoveStatement(id), apperrors.ErrNotFound)
}

func TestEditorSession_RemoveTermAndMetadata(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	session := f.openWithLabel(t)

	name := "Books"
	kb := "wikidata"
	session.UpdateMetadata(MetadataPatch{Name: &name, TargetKnowledgeBase: &kb})
	snap := session.Snapshot()
	assert.Equal(t, "Books", snap.Name)
	assert.Equal(t, "wikidata", snap.TargetKnowledgeBase)
	assert.Empty(t, session.Validation().Errors)

	assert.ErrorIs(t, session.RemoveTerm(models.TargetStatement, "en", models.ColumnMapping{}), apperrors.ErrInvalidTarget)
	require.NoError(t, session.RemoveTerm(models.TargetLabel, "en", models.ColumnMapping{}))
	assert.Empty(t, session.Snapshot().Labels)
	assert.Contains(t, pathsOf(session.Validation().Errors), schema.PathLabels)
}

func TestEditorSession_SetRuleEnabled(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	session := f.openWithLabel(t)
	assert.Contains(t, pathsOf(session.Validation().Warnings), schema.PathStatements)

	require.NoError(t, session.SetRuleEnabled("statement-recommended", false))
	assert.NotContains(t, pathsOf(session.Validation().Warnings), schema.PathStatements)
	assert.ErrorIs(t, session.SetRuleEnabled("nope", true), apperrors.ErrNotFound)
}

func TestEditorSessionService_CheckConstraints(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	ctx := context.Background()
	session, err := f.service.Open(ctx, f.projectID, nil)
	require.NoError(t, err)
	session.SetColumns(testColumns())

	_, err = f.service.AddStatement(ctx, session, models.StatementMapping{
		Property: models.PropertyReference{ID: "P957"},
		Value:    models.ColumnValue{Column: models.ColumnMapping{ColumnName: "isbn", StorageType: "VARCHAR"}, Type: models.ValueTypeExternalID},
	})
	require.NoError(t, err)
	session.AddStatement(models.StatementMapping{
		Property: models.PropertyReference{ID: "P957"},
		Value:    models.ConstantValue{Value: "x", Type: models.ValueTypeExternalID},
	})
	calls := f.properties.calls

	issues, err := f.service.CheckConstraints(ctx, session)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, models.CodeConstraintViolation, issues[0].Code)
	assert.Equal(t, schema.StatementValuePath(0), issues[0].Path)
	assert.Equal(t, []string{"not-an-isbn"}, issues[0].Context["samples"])
	assert.Equal(t, calls+1, f.properties.calls, "constant values are not checked")

	assert.Contains(t, pathsOf(session.Validation().Warnings), schema.StatementValuePath(0))

	columns := testColumns()
	columns[1].SampleValues = []string{"0441013597"}
	session.SetColumns(columns)
	issues, err = f.service.CheckConstraints(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.NotContains(t, pathsOf(session.Validation().Warnings), schema.StatementValuePath(0))
}

func TestEditorSessionService_ResolveAndSearchProperties(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	ctx := context.Background()

	ref, err := f.service.ResolveProperty(ctx, "P957")
	require.NoError(t, err)
	assert.Equal(t, "ISBN-10", ref.Label)

	results, err := f.service.SearchProperties(ctx, "ISBN-10", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "P957", results[0].ID)

	noKB := NewEditorSessionService(f.repo, f.scoper, nil, nil, EditorConfig{}, zap.NewNop())
	_, err = noKB.ResolveProperty(ctx, "P957")
	assert.Error(t, err)
}

func TestEditorSessionService_ListAndDeleteMappings(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{})
	ctx := context.Background()
	session := f.openWithLabel(t)
	saved, err := f.service.Save(ctx, session)
	require.NoError(t, err)

	list, err := f.service.ListMappings(ctx, f.projectID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0].ID)

	require.NoError(t, f.service.DeleteMapping(ctx, f.projectID, saved.ID))
	assert.ErrorIs(t, f.service.DeleteMapping(ctx, f.projectID, saved.ID), apperrors.ErrNotFound)
}

func TestEditorSessionService_EvictIdle(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{SessionTTL: time.Minute})
	ctx := context.Background()

	idle, err := f.service.Open(ctx, f.projectID, nil)
	require.NoError(t, err)
	active, err := f.service.Open(ctx, f.projectID, nil)
	require.NoError(t, err)
	idle.lastUsed.Store(time.Now().Add(-2 * time.Minute).UnixNano())

	assert.Equal(t, 1, f.service.EvictIdle(time.Now()))
	assert.Equal(t, 1, f.service.Count())
	assert.Equal(t, 1, f.metrics.sessions)

	_, err = f.service.Get(f.projectID, idle.ID())
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	_, err = f.service.Get(f.projectID, active.ID())
	assert.NoError(t, err)
}

func TestEditorSessionService_RunJanitor(t *testing.T) {
	f := newServiceFixture(t, EditorConfig{SessionTTL: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := f.service.Open(ctx, f.projectID, nil)
	require.NoError(t, err)

	f.service.RunJanitor(ctx, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return f.service.Count() == 0 }, time.Second, 5*time.Millisecond)
}

func TestEditorSessionService_Audit(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newServiceFixture(t, EditorConfig{SessionTTL: time.Minute})
	f.service = NewEditorSessionService(f.repo, f.scoper, f.properties, f.metrics,
		EditorConfig{SessionTTL: time.Minute}, zap.NewNop(),
		WithAuditor(audit.NewMappingAuditor(zap.New(core))))
	ctx := context.Background()

	saved := f.openWithLabel(t)
	saved.UpdateMetadata(MetadataPatch{Name: ptr("Books"), TargetKnowledgeBase: ptr("wikidata")})
	snap, err := f.service.Save(ctx, saved)
	require.NoError(t, err)

	unsaved := f.openWithLabel(t)
	unsaved.lastUsed.Store(time.Now().Add(-2 * time.Minute).UnixNano())
	saved.lastUsed.Store(time.Now().Add(-2 * time.Minute).UnixNano())
	require.Equal(t, 2, f.service.EvictIdle(time.Now()))

	require.NoError(t, f.service.DeleteMapping(ctx, f.projectID, snap.ID))

	assert.Equal(t, 1, logs.FilterMessage("Schema mapping saved").Len())
	assert.Equal(t, 1, logs.FilterMessage("Editor session expired").Len())
	expired := logs.FilterMessage("Editor session expired with unsaved changes").All()
	require.Len(t, expired, 1)
	assert.Equal(t, zapcore.WarnLevel, expired[0].Level)
	assert.Equal(t, unsaved.ID().String(), expired[0].ContextMap()["session_id"])
	assert.Equal(t, 1, logs.FilterMessage("Schema mapping deleted").Len())
}

func ptr(s string) *string { return &s }

func pathsOf(issues []models.ValidationIssue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Path
	}
	return out
}
