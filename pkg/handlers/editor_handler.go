package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-mapper/pkg/mapping"
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/services"
	"github.com/ekaya-inc/ekaya-mapper/pkg/validation"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// OpenSessionRequest for POST /editor/sessions. An empty body starts a new schema.
type OpenSessionRequest struct {
	SchemaID *uuid.UUID `json:"schema_id,omitempty"`
}

// SetColumnsRequest for PUT /editor/sessions/{sid}/columns
type SetColumnsRequest struct {
	Columns []models.ColumnInfo `json:"columns"`
}

// SetTargetsRequest for PUT /editor/sessions/{sid}/targets
type SetTargetsRequest struct {
	Targets []models.DropTarget `json:"targets"`
}

// StartDragRequest for POST /editor/sessions/{sid}/drag/start
type StartDragRequest struct {
	Column string `json:"column"`
}

// PathRequest carries a target path for hover and drop.
type PathRequest struct {
	Path string `json:"path"`
}

// DragStateRequest for PUT /editor/sessions/{sid}/drag/state
type DragStateRequest struct {
	State mapping.DragState `json:"state"`
}

// RankRequest for PUT /editor/sessions/{sid}/statements/{stid}/rank
type RankRequest struct {
	Rank models.Rank `json:"rank"`
}

// RemoveTermRequest for POST /editor/sessions/{sid}/terms/remove
type RemoveTermRequest struct {
	Kind     models.TargetKind    `json:"kind"`
	Language string               `json:"language"`
	Column   models.ColumnMapping `json:"column"`
}

// RuleUpdateRequest for PUT /editor/sessions/{sid}/rules/{rid}
type RuleUpdateRequest struct {
	Enabled bool `json:"enabled"`
}

// DropResponse is returned by POST /editor/sessions/{sid}/drop.
type DropResponse struct {
	Feedback   mapping.DropFeedback        `json:"feedback"`
	Drag       services.DragView           `json:"drag"`
	Validation services.ValidationOverview `json:"validation"`
}

// StatementResponse is returned by the statement mutations.
type StatementResponse struct {
	StatementID string                      `json:"statement_id,omitempty"`
	Validation  services.ValidationOverview `json:"validation"`
}

// ConstraintCheckResponse is returned by POST /editor/sessions/{sid}/constraints/check.
type ConstraintCheckResponse struct {
	Issues     []models.ValidationIssue    `json:"issues"`
	Validation services.ValidationOverview `json:"validation"`
}

// RuleView is a completeness rule without its predicate.
type RuleView struct {
	ID        string          `json:"id"`
	FieldPath string          `json:"field_path"`
	Message   string          `json:"message"`
	Severity  models.Severity `json:"severity"`
	Enabled   bool            `json:"enabled"`
}

func toRuleViews(rules []validation.Rule) []RuleView {
	views := make([]RuleView, 0, len(rules))
	for _, r := range rules {
		views = append(views, RuleView{
			ID:        r.ID,
			FieldPath: r.FieldPath,
			Message:   r.Message,
			Severity:  r.Severity,
			Enabled:   r.Enabled,
		})
	}
	return views
}

// ============================================================================
// Handler
// ============================================================================

// EditorHandler exposes editor sessions over HTTP.
type EditorHandler struct {
	editorService services.EditorSessionService
	logger        *zap.Logger
}

// NewEditorHandler creates a new editor handler.
func NewEditorHandler(editorService services.EditorSessionService, logger *zap.Logger) *EditorHandler {
	return &EditorHandler{
		editorService: editorService,
		logger:        logger,
	}
}

// RegisterRoutes registers the editor handler's routes on the given mux.
// The service pins its own connections, so no project scope middleware is needed.
func (h *EditorHandler) RegisterRoutes(mux *http.ServeMux) {
	base := "/api/projects/{pid}/editor/sessions"
	session := base + "/{sid}"
	statement := session + "/statements/{stid}"

	mux.HandleFunc("POST "+base, h.Open)
	mux.HandleFunc("GET "+session, h.Get)
	mux.HandleFunc("DELETE "+session, h.Close)

	mux.HandleFunc("PUT "+session+"/columns", h.SetColumns)
	mux.HandleFunc("PUT "+session+"/targets", h.SetTargets)

	mux.HandleFunc("GET "+session+"/drag", h.GetDrag)
	mux.HandleFunc("POST "+session+"/drag/start", h.StartDrag)
	mux.HandleFunc("POST "+session+"/drag/hover", h.Hover)
	mux.HandleFunc("POST "+session+"/drag/end", h.EndDrag)
	mux.HandleFunc("PUT "+session+"/drag/state", h.SetDragState)
	mux.HandleFunc("POST "+session+"/drop", h.Drop)

	mux.HandleFunc("POST "+session+"/statements", h.AddStatement)
	mux.HandleFunc("PUT "+statement, h.UpdateStatement)
	mux.HandleFunc("DELETE "+statement, h.RemoveStatement)
	mux.HandleFunc("PUT "+statement+"/rank", h.SetRank)
	mux.HandleFunc("DELETE "+statement+"/qualifiers/{idx}", h.RemoveQualifier)
	mux.HandleFunc("DELETE "+statement+"/references/{idx}", h.RemoveReference)

	mux.HandleFunc("POST "+session+"/terms/remove", h.RemoveTerm)
	mux.HandleFunc("PATCH "+session+"/metadata", h.UpdateMetadata)

	mux.HandleFunc("GET "+session+"/validation", h.GetValidation)
	mux.HandleFunc("GET "+session+"/rules", h.ListRules)
	mux.HandleFunc("PUT "+session+"/rules/{rid}", h.SetRule)

	mux.HandleFunc("POST "+session+"/save", h.Save)
	mux.HandleFunc("POST "+session+"/constraints/check", h.CheckConstraints)
}

// session resolves the {pid}/{sid} session, writing an error response when
// it cannot.
func (h *EditorHandler) session(w http.ResponseWriter, r *http.Request) (*services.EditorSession, bool) {
	projectID, sessionID, ok := ParseProjectAndSessionIDs(w, r, h.logger)
	if !ok {
		return nil, false
	}
	session, err := h.editorService.Get(projectID, sessionID)
	if err != nil {
		writeServiceError(w, h.logger, err, "get_session_failed")
		return nil, false
	}
	return session, true
}

// Open handles POST /api/projects/{pid}/editor/sessions
func (h *EditorHandler) Open(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req OpenSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, h.logger, "invalid_request", "Invalid request body")
		return
	}

	session, err := h.editorService.Open(r.Context(), projectID, req.SchemaID)
	if err != nil {
		writeServiceError(w, h.logger, err, "open_session_failed")
		return
	}

	respond(w, http.StatusCreated, session.View(), h.logger)
}

// Get handles GET /api/projects/{pid}/editor/sessions/{sid}
func (h *EditorHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, session.View(), h.logger)
}

// Close handles DELETE /api/projects/{pid}/editor/sessions/{sid}
func (h *EditorHandler) Close(w http.ResponseWriter, r *http.Request) {
	projectID, sessionID, ok := ParseProjectAndSessionIDs(w, r, h.logger)
	if !ok {
		return
	}
	if err := h.editorService.Close(projectID, sessionID); err != nil {
		writeServiceError(w, h.logger, err, "close_session_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetColumns handles PUT /api/projects/{pid}/editor/sessions/{sid}/columns
func (h *EditorHandler) SetColumns(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SetColumnsRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	for _, c := range req.Columns {
		if c.Name == "" {
			badRequest(w, h.logger, "invalid_column", "Column name is required")
			return
		}
	}

	session.SetColumns(req.Columns)
	respond(w, http.StatusOK, session.Columns(), h.logger)
}

// SetTargets handles PUT /api/projects/{pid}/editor/sessions/{sid}/targets
func (h *EditorHandler) SetTargets(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SetTargetsRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if err := session.SetTargets(req.Targets); err != nil {
		writeServiceError(w, h.logger, err, "set_targets_failed")
		return
	}
	respond(w, http.StatusOK, session.Drag(), h.logger)
}

// GetDrag handles GET /api/projects/{pid}/editor/sessions/{sid}/drag
func (h *EditorHandler) GetDrag(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, session.Drag(), h.logger)
}

// StartDrag handles POST /api/projects/{pid}/editor/sessions/{sid}/drag/start
func (h *EditorHandler) StartDrag(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req StartDragRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	view, err := session.StartDrag(req.Column)
	if err != nil {
		writeServiceError(w, h.logger, err, "start_drag_failed")
		return
	}
	respond(w, http.StatusOK, view, h.logger)
}

// Hover handles POST /api/projects/{pid}/editor/sessions/{sid}/drag/hover
func (h *EditorHandler) Hover(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req PathRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	respond(w, http.StatusOK, session.Hover(req.Path), h.logger)
}

// EndDrag handles POST /api/projects/{pid}/editor/sessions/{sid}/drag/end
func (h *EditorHandler) EndDrag(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, session.EndDrag(), h.logger)
}

// SetDragState handles PUT /api/projects/{pid}/editor/sessions/{sid}/drag/state
func (h *EditorHandler) SetDragState(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req DragStateRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if !req.State.IsValid() {
		badRequest(w, h.logger, "invalid_drag_state", "State must be idle, dragging or dropping")
		return
	}

	view, err := session.SetDragState(req.State)
	if err != nil {
		writeServiceError(w, h.logger, err, "set_drag_state_failed")
		return
	}
	respond(w, http.StatusOK, view, h.logger)
}

// Drop handles POST /api/projects/{pid}/editor/sessions/{sid}/drop
//
// A rejected drop is a 200 with error feedback; only a missing drag or an
// unknown target path fail the request.
func (h *EditorHandler) Drop(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req PathRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	feedback, err := session.Drop(r.Context(), req.Path)
	if err != nil {
		writeServiceError(w, h.logger, err, "drop_failed")
		return
	}

	respond(w, http.StatusOK, DropResponse{
		Feedback:   feedback,
		Drag:       session.Drag(),
		Validation: session.Validation(),
	}, h.logger)
}

// AddStatement handles POST /api/projects/{pid}/editor/sessions/{sid}/statements
func (h *EditorHandler) AddStatement(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var st models.StatementMapping
	if !decodeJSON(w, r, &st, h.logger) {
		return
	}
	if st.Rank == "" {
		st.Rank = models.RankNormal
	}
	if !st.Rank.IsValid() {
		badRequest(w, h.logger, "invalid_rank", "Rank must be preferred, normal or deprecated")
		return
	}

	id, err := h.editorService.AddStatement(r.Context(), session, st)
	if err != nil {
		writeServiceError(w, h.logger, err, "add_statement_failed")
		return
	}
	respond(w, http.StatusCreated, StatementResponse{StatementID: id, Validation: session.Validation()}, h.logger)
}

// UpdateStatement handles PUT /api/projects/{pid}/editor/sessions/{sid}/statements/{stid}
func (h *EditorHandler) UpdateStatement(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var st models.StatementMapping
	if !decodeJSON(w, r, &st, h.logger) {
		return
	}
	if st.Rank == "" {
		st.Rank = models.RankNormal
	}
	if !st.Rank.IsValid() {
		badRequest(w, h.logger, "invalid_rank", "Rank must be preferred, normal or deprecated")
		return
	}

	id := r.PathValue("stid")
	if err := session.UpdateStatement(id, st); err != nil {
		writeServiceError(w, h.logger, err, "update_statement_failed")
		return
	}
	respond(w, http.StatusOK, StatementResponse{StatementID: id, Validation: session.Validation()}, h.logger)
}

// RemoveStatement handles DELETE /api/projects/{pid}/editor/sessions/{sid}/statements/{stid}
func (h *EditorHandler) RemoveStatement(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.RemoveStatement(r.PathValue("stid")); err != nil {
		writeServiceError(w, h.logger, err, "remove_statement_failed")
		return
	}
	respond(w, http.StatusOK, StatementResponse{Validation: session.Validation()}, h.logger)
}

// SetRank handles PUT /api/projects/{pid}/editor/sessions/{sid}/statements/{stid}/rank
func (h *EditorHandler) SetRank(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req RankRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if !req.Rank.IsValid() {
		badRequest(w, h.logger, "invalid_rank", "Rank must be preferred, normal or deprecated")
		return
	}

	id := r.PathValue("stid")
	if err := session.SetStatementRank(id, req.Rank); err != nil {
		writeServiceError(w, h.logger, err, "set_rank_failed")
		return
	}
	respond(w, http.StatusOK, StatementResponse{StatementID: id, Validation: session.Validation()}, h.logger)
}

// RemoveQualifier handles DELETE .../statements/{stid}/qualifiers/{idx}
func (h *EditorHandler) RemoveQualifier(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	idx, ok := ParseIndex(w, r, h.logger)
	if !ok {
		return
	}

	id := r.PathValue("stid")
	if err := session.RemoveQualifier(id, idx); err != nil {
		writeServiceError(w, h.logger, err, "remove_qualifier_failed")
		return
	}
	respond(w, http.StatusOK, StatementResponse{StatementID: id, Validation: session.Validation()}, h.logger)
}

// RemoveReference handles DELETE .../statements/{stid}/references/{idx}
func (h *EditorHandler) RemoveReference(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	idx, ok := ParseIndex(w, r, h.logger)
	if !ok {
		return
	}

	id := r.PathValue("stid")
	if err := session.RemoveReference(id, idx); err != nil {
		writeServiceError(w, h.logger, err, "remove_reference_failed")
		return
	}
	respond(w, http.StatusOK, StatementResponse{StatementID: id, Validation: session.Validation()}, h.logger)
}

// RemoveTerm handles POST /api/projects/{pid}/editor/sessions/{sid}/terms/remove
func (h *EditorHandler) RemoveTerm(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req RemoveTermRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}
	if req.Language == "" {
		badRequest(w, h.logger, "invalid_request", "Language is required")
		return
	}

	if err := session.RemoveTerm(req.Kind, req.Language, req.Column); err != nil {
		writeServiceError(w, h.logger, err, "remove_term_failed")
		return
	}
	respond(w, http.StatusOK, session.Validation(), h.logger)
}

// UpdateMetadata handles PATCH /api/projects/{pid}/editor/sessions/{sid}/metadata
func (h *EditorHandler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var patch services.MetadataPatch
	if !decodeJSON(w, r, &patch, h.logger) {
		return
	}

	session.UpdateMetadata(patch)
	respond(w, http.StatusOK, session.View(), h.logger)
}

// GetValidation handles GET /api/projects/{pid}/editor/sessions/{sid}/validation
func (h *EditorHandler) GetValidation(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, session.Validation(), h.logger)
}

// ListRules handles GET /api/projects/{pid}/editor/sessions/{sid}/rules
func (h *EditorHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, toRuleViews(session.Rules()), h.logger)
}

// SetRule handles PUT /api/projects/{pid}/editor/sessions/{sid}/rules/{rid}
func (h *EditorHandler) SetRule(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req RuleUpdateRequest
	if !decodeJSON(w, r, &req, h.logger) {
		return
	}

	if err := session.SetRuleEnabled(r.PathValue("rid"), req.Enabled); err != nil {
		writeServiceError(w, h.logger, err, "set_rule_failed")
		return
	}
	respond(w, http.StatusOK, toRuleViews(session.Rules()), h.logger)
}

// Save handles POST /api/projects/{pid}/editor/sessions/{sid}/save
func (h *EditorHandler) Save(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	saved, err := h.editorService.Save(r.Context(), session)
	if err != nil {
		writeServiceError(w, h.logger, err, "save_failed")
		return
	}
	respond(w, http.StatusOK, saved, h.logger)
}

// CheckConstraints handles POST /api/projects/{pid}/editor/sessions/{sid}/constraints/check
func (h *EditorHandler) CheckConstraints(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	issues, err := h.editorService.CheckConstraints(r.Context(), session)
	if err != nil {
		writeServiceError(w, h.logger, err, "check_constraints_failed")
		return
	}
	respond(w, http.StatusOK, ConstraintCheckResponse{Issues: issues, Validation: session.Validation()}, h.logger)
}
