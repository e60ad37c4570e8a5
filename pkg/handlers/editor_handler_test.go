package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-mapper/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-mapper/pkg/knowledgebase"
	"github.com/ekaya-inc/ekaya-mapper/pkg/mapping"
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/schema"
	"github.com/ekaya-inc/ekaya-mapper/pkg/services"
)

// --- Fakes ---

type memoryMappingRepo struct {
	mu       sync.Mutex
	mappings map[uuid.UUID]models.SchemaMapping
}

func newMemoryMappingRepo() *memoryMappingRepo {
	return &memoryMappingRepo{mappings: make(map[uuid.UUID]models.SchemaMapping)}
}

func (r *memoryMappingRepo) Get(_ context.Context, id uuid.UUID) (*models.SchemaMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.mappings[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &m, nil
}

func (r *memoryMappingRepo) List(_ context.Context, projectID uuid.UUID) ([]*models.SchemaMapping, error) {
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

func (r *memoryMappingRepo) Upsert(_ context.Context, m *models.SchemaMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	r.mappings[m.ID] = *m
	return nil
}

func (r *memoryMappingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mappings[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.mappings, id)
	return nil
}

func (r *memoryMappingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mappings)
}

type passthroughScoper struct{}

func (passthroughScoper) WithProjectScope(ctx context.Context, _ uuid.UUID) (context.Context, func(), error) {
	return ctx, func() {}, nil
}

type staticProperties map[string]*knowledgebase.Property

func (p staticProperties) GetProperty(_ context.Context, id, _ string) (*knowledgebase.Property, error) {
	prop, ok := p[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return prop, nil
}

func (p staticProperties) SearchProperties(_ context.Context, query, _ string, limit int) ([]knowledgebase.SearchResult, error) {
	var out []knowledgebase.SearchResult
	for _, prop := range p {
		if prop.Label == query && len(out) < limit {
			out = append(out, knowledgebase.SearchResult{ID: prop.ID, Label: prop.Label})
		}
	}
	return out, nil
}

// --- Fixture ---

type editorFixture struct {
	repo      *memoryMappingRepo
	service   services.EditorSessionService
	mux       *http.ServeMux
	projectID uuid.UUID
}

func newEditorFixture(t *testing.T) *editorFixture {
	t.Helper()
	f := &editorFixture{
		repo:      newMemoryMappingRepo(),
		projectID: uuid.New(),
	}
	properties := staticProperties{
		"P957": {ID: "P957", Label: "ISBN-10", DataType: models.ValueTypeExternalID},
	}
	f.service = services.NewEditorSessionService(f.repo, passthroughScoper{}, properties, nil, services.EditorConfig{}, zap.NewNop())

	f.mux = http.NewServeMux()
	NewEditorHandler(f.service, zap.NewNop()).RegisterRoutes(f.mux)
	passthrough := func(next http.HandlerFunc) http.HandlerFunc { return next }
	NewMappingsHandler(f.service, zap.NewNop()).RegisterRoutes(f.mux, passthrough)
	return f
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (f *editorFixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, apiEnvelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	var env apiEnvelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (f *editorFixture) sessionURL(sessionID uuid.UUID) string {
	return "/api/projects/" + f.projectID.String() + "/editor/sessions/" + sessionID.String()
}

func (f *editorFixture) open(t *testing.T) uuid.UUID {
	t.Helper()
	rec, env := f.do(t, http.MethodPost, "/api/projects/"+f.projectID.String()+"/editor/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view services.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	return view.ID
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

func (f *editorFixture) prepare(t *testing.T, sessionID uuid.UUID) {
	t.Helper()
	url := f.sessionURL(sessionID)

	rec, _ := f.do(t, http.MethodPut, url+"/columns", SetColumnsRequest{Columns: []models.ColumnInfo{
		{Name: "title", StorageType: "VARCHAR", SampleValues: []string{"Dune"}},
		{Name: "pages", StorageType: "INTEGER", Nullable: true},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = f.do(t, http.MethodPut, url+"/targets", SetTargetsRequest{Targets: []models.DropTarget{labelTarget()}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// --- Tests ---

func TestEditorHandler_DragDropAndSave(t *testing.T) {
	f := newEditorFixture(t)
	sessionID := f.open(t)
	f.prepare(t, sessionID)
	url := f.sessionURL(sessionID)
	path := labelTarget().Path

	rec, env := f.do(t, http.MethodPost, url+"/drag/start", StartDragRequest{Column: "title"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var drag services.DragView
	require.NoError(t, json.Unmarshal(env.Data, &drag))
	assert.Equal(t, mapping.DragDragging, drag.DragState)
	assert.Equal(t, []string{path}, drag.ValidTargetPaths)
	assert.Equal(t, mapping.FeedbackValid, drag.Feedback[path])

	rec, env = f.do(t, http.MethodPost, url+"/drag/hover", PathRequest{Path: path})
	require.Equal(t, http.StatusOK, rec.Code)
	var hover services.HoverView
	require.NoError(t, json.Unmarshal(env.Data, &hover))
	assert.True(t, hover.Valid)

	rec, env = f.do(t, http.MethodPost, url+"/drop", PathRequest{Path: path})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var drop DropResponse
	require.NoError(t, json.Unmarshal(env.Data, &drop))
	assert.Equal(t, mapping.FeedbackSuccess, drop.Feedback.Type)
	assert.Equal(t, mapping.DragIdle, drop.Drag.DragState, "drop always ends the drag")
	assert.True(t, drop.Validation.IsDirty)

	name, kb := "Books", "wikidata"
	rec, _ = f.do(t, http.MethodPatch, url+"/metadata", services.MetadataPatch{Name: &name, TargetKnowledgeBase: &kb})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = f.do(t, http.MethodPost, url+"/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var saved models.SchemaMapping
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	assert.Equal(t, "Books", saved.Name)
	assert.Equal(t, "title", saved.Labels["en"].ColumnName)
	assert.Equal(t, 1, f.repo.count())

	rec, env = f.do(t, http.MethodPost, url+"/save", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "nothing_to_save", env.Error)

	rec, env = f.do(t, http.MethodGet, "/api/projects/"+f.projectID.String()+"/mappings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list MappingListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, 1, list.Total)
}

func TestEditorHandler_RejectedDropIsNotAnError(t *testing.T) {
	f := newEditorFixture(t)
	sessionID := f.open(t)
	f.prepare(t, sessionID)
	url := f.sessionURL(sessionID)

	rec, _ := f.do(t, http.MethodPost, url+"/drag/start", StartDragRequest{Column: "pages"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := f.do(t, http.MethodPost, url+"/drop", PathRequest{Path: labelTarget().Path})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var drop DropResponse
	require.NoError(t, json.Unmarshal(env.Data, &drop))
	assert.Equal(t, mapping.FeedbackError, drop.Feedback.Type)
	require.NotNil(t, drop.Feedback.Verdict)
	assert.False(t, drop.Feedback.Verdict.Valid)
	assert.False(t, drop.Validation.IsValid)
	assert.Equal(t, mapping.DragIdle, drop.Drag.DragState)
}

func TestEditorHandler_DropErrors(t *testing.T) {
	f := newEditorFixture(t)
	sessionID := f.open(t)
	f.prepare(t, sessionID)
	url := f.sessionURL(sessionID)

	rec, env := f.do(t, http.MethodPost, url+"/drop", PathRequest{Path: labelTarget().Path})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_active_drag", env.Error)

	rec, _ = f.do(t, http.MethodPost, url+"/drag/start", StartDragRequest{Column: "title"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = f.do(t, http.MethodPost, url+"/drop", PathRequest{Path: "item.terms.labels.fr"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown_target", env.Error)
}

func TestEditorHandler_BadRequests(t *testing.T) {
	f := newEditorFixture(t)
	sessionID := f.open(t)
	f.prepare(t, sessionID)
	url := f.sessionURL(sessionID)

	aliasOnLabelPath := labelTarget()
	aliasOnLabelPath.Kind = models.TargetAlias

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantError  string
	}{
		{"duplicate target path", http.MethodPut, url + "/targets", SetTargetsRequest{Targets: []models.DropTarget{labelTarget(), aliasOnLabelPath}}, http.StatusBadRequest, "invalid_target"},
		{"unknown column", http.MethodPost, url + "/drag/start", StartDragRequest{Column: "nope"}, http.StatusNotFound, "not_found"},
		{"invalid drag state", http.MethodPut, url + "/drag/state", DragStateRequest{State: "flying"}, http.StatusBadRequest, "invalid_drag_state"},
		{"invalid rank", http.MethodPut, url + "/statements/st-1/rank", RankRequest{Rank: "best"}, http.StatusBadRequest, "invalid_rank"},
		{"unknown statement", http.MethodDelete, url + "/statements/st-1", nil, http.StatusNotFound, "not_found"},
		{"bad index", http.MethodDelete, url + "/statements/st-1/qualifiers/x", nil, http.StatusBadRequest, "invalid_index"},
		{"non-term kind", http.MethodPost, url + "/terms/remove", RemoveTermRequest{Kind: models.TargetStatement, Language: "en"}, http.StatusBadRequest, "invalid_target"},
		{"unknown rule", http.MethodPut, url + "/rules/nope", RuleUpdateRequest{Enabled: false}, http.StatusNotFound, "not_found"},
		{"unknown session", http.MethodGet, f.sessionURL(uuid.New()), nil, http.StatusNotFound, "session_not_found"},
		{"malformed session id", http.MethodGet, "/api/projects/" + f.projectID.String() + "/editor/sessions/bad", nil, http.StatusBadRequest, "invalid_session_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantError, env.Error)
		})
	}
}

func TestEditorHandler_InvalidJSON(t *testing.T) {
	f := newEditorFixture(t)
	sessionID := f.open(t)

	req := httptest.NewRequest(http.MethodPost, f.sessionURL(sessionID)+"/drag/start", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditorHandler_StatementLifecycle(t *testing.T) {
	f := newEditorFixture(t)
	sessionID := f.open(t)
	url := f.sessionURL(sessionID)

	rec, env := f.do(t, http.MethodPost, url+"/statements", models.StatementMapping{
		Property: models.PropertyReference{ID: "P957"},
		Value:    models.ConstantValue{Value: "0441013597", Type: models.ValueTypeExternalID},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created StatementResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.StatementID)

	rec, env = f.do(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view services.SessionView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	require.Len(t, view.Mapping.Statements, 1)
	assert.Equal(t, "ISBN-10", view.Mapping.Statements[0].Property.Label, "label resolved from the knowledge base")
	assert.Equal(t, models.RankNormal, view.Mapping.Statements[0].Rank)

	stURL := url + "/statements/" + created.StatementID
	rec, _ = f.do(t, http.MethodPut, stURL+"/rank", RankRequest{Rank: models.RankPreferred})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, models.RankPreferred, f.snapshot(t, sessionID).Statements[0].Rank)

	rec, _ = f.do(t, http.MethodDelete, stURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.snapshot(t, sessionID).Statements)
}

func (f *editorFixture) snapshot(t *testing.T, sessionID uuid.UUID) models.SchemaMapping {
	t.Helper()
	session, err := f.service.Get(f.projectID, sessionID)
	require.NoError(t, err)
	return session.Snapshot()
}

func TestEditorHandler_RulesAndClose(t *testing.T) {
	f := newEditorFixture(t)
	sessionID := f.open(t)
	url := f.sessionURL(sessionID)

	rec, env := f.do(t, http.MethodGet, url+"/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rules []RuleView
	require.NoError(t, json.Unmarshal(env.Data, &rules))
	require.NotEmpty(t, rules)

	rec, env = f.do(t, http.MethodPut, url+"/rules/"+rules[0].ID, RuleUpdateRequest{Enabled: false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &rules))
	assert.False(t, rules[0].Enabled)

	rec, _ = f.do(t, http.MethodDelete, url, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = f.do(t, http.MethodGet, url, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session_not_found", env.Error)
}

func TestEditorHandler_SessionsAreProjectScoped(t *testing.T) {
	f := newEditorFixture(t)
	sessionID := f.open(t)

	other := "/api/projects/" + uuid.New().String() + "/editor/sessions/" + sessionID.String()
	rec, env := f.do(t, http.MethodGet, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session_not_found", env.Error)
}
