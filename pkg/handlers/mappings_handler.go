package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-mapper/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-mapper/pkg/knowledgebase"
	"github.com/ekaya-inc/ekaya-mapper/pkg/models"
	"github.com/ekaya-inc/ekaya-mapper/pkg/services"
)

// MaxSearchLimit caps the limit query parameter of property search.
const MaxSearchLimit = 50

// MappingListResponse for GET /mappings
type MappingListResponse struct {
	Mappings []*models.SchemaMapping `json:"mappings"`
	Total    int                     `json:"total"`
}

// PropertySearchResponse for GET /knowledge-base/properties
type PropertySearchResponse struct {
	Results []knowledgebase.SearchResult `json:"results"`
	Total   int                          `json:"total"`
}

// MappingsHandler serves stored schema mappings and knowledge-base lookups.
type MappingsHandler struct {
	editorService services.EditorSessionService
	logger        *zap.Logger
}

// NewMappingsHandler creates a new mappings handler.
func NewMappingsHandler(editorService services.EditorSessionService, logger *zap.Logger) *MappingsHandler {
	return &MappingsHandler{
		editorService: editorService,
		logger:        logger,
	}
}

// RegisterRoutes registers the mappings handler's routes on the given mux.
func (h *MappingsHandler) RegisterRoutes(mux *http.ServeMux, projectScope ProjectScopeMiddleware) {
	base := "/api/projects/{pid}/mappings"

	mux.HandleFunc("GET "+base, projectScope(h.List))
	mux.HandleFunc("DELETE "+base+"/{mid}", projectScope(h.Delete))

	mux.HandleFunc("GET /api/knowledge-base/properties", h.SearchProperties)
	mux.HandleFunc("GET /api/knowledge-base/properties/{propid}", h.GetProperty)
}

// List handles GET /api/projects/{pid}/mappings
func (h *MappingsHandler) List(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	mappings, err := h.editorService.ListMappings(r.Context(), projectID)
	if err != nil {
		writeServiceError(w, h.logger, err, "list_mappings_failed")
		return
	}
	if mappings == nil {
		mappings = []*models.SchemaMapping{}
	}

	respond(w, http.StatusOK, MappingListResponse{Mappings: mappings, Total: len(mappings)}, h.logger)
}

// Delete handles DELETE /api/projects/{pid}/mappings/{mid}
func (h *MappingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}
	schemaID, ok := ParseMappingID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.editorService.DeleteMapping(r.Context(), projectID, schemaID); err != nil {
		writeServiceError(w, h.logger, err, "delete_mapping_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchProperties handles GET /api/knowledge-base/properties?q=&limit=
func (h *MappingsHandler) SearchProperties(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		badRequest(w, h.logger, "invalid_request", "Query parameter q is required")
		return
	}

	limit := knowledgebase.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > MaxSearchLimit {
			badRequest(w, h.logger, "invalid_limit", "Limit must be between 1 and "+strconv.Itoa(MaxSearchLimit))
			return
		}
		limit = n
	}

	results, err := h.editorService.SearchProperties(r.Context(), query, limit)
	if err != nil {
		h.writeKnowledgeBaseError(w, err)
		return
	}
	if results == nil {
		results = []knowledgebase.SearchResult{}
	}

	respond(w, http.StatusOK, PropertySearchResponse{Results: results, Total: len(results)}, h.logger)
}

// GetProperty handles GET /api/knowledge-base/properties/{propid}
func (h *MappingsHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	ref, err := h.editorService.ResolveProperty(r.Context(), r.PathValue("propid"))
	if err != nil {
		h.writeKnowledgeBaseError(w, err)
		return
	}
	respond(w, http.StatusOK, ref, h.logger)
}

// writeKnowledgeBaseError reports upstream failures as 502.
func (h *MappingsHandler) writeKnowledgeBaseError(w http.ResponseWriter, err error) {
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidInput) {
		writeServiceError(w, h.logger, err, "knowledge_base_error")
		return
	}
	h.logger.Warn("Knowledge base request failed", zap.Error(err))
	if err := ErrorResponse(w, http.StatusBadGateway, "knowledge_base_unavailable", err.Error()); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
