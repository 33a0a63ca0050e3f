package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hapdco/catalog-engine/pkg/apperrors"
	"github.com/hapdco/catalog-engine/pkg/services"
)

// SearchHandler exposes the search service over HTTP.
type SearchHandler struct {
	search services.SearchService
	logger *zap.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(search services.SearchService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{search: search, logger: logger}
}

// RegisterRoutes registers the search handler's routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", h.Search)
	mux.HandleFunc("POST /api/search/more", h.More)
	mux.HandleFunc("GET /api/suppliers/{id}", h.SupplierDetail)
	mux.HandleFunc("GET /api/brands", h.Brands)
}

type searchRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Brand     string `json:"brand,omitempty"`
}

func (h *SearchHandler) decodeSearchRequest(w http.ResponseWriter, r *http.Request) (*searchRequest, bool) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return nil, false
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Query = strings.TrimSpace(req.Query)
	req.Brand = strings.TrimSpace(req.Brand)
	if req.SessionID == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return nil, false
	}
	if req.Query == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "query is required")
		return nil, false
	}
	return &req, true
}

// Search handles POST /api/search requests.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSearchRequest(w, r)
	if !ok {
		return
	}

	result, err := h.search.Search(r.Context(), req.SessionID, req.Query, req.Brand)
	if err != nil {
		h.writeSearchError(w, err, req.Query)
		return
	}
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode search response", zap.Error(err))
	}
}

// More handles POST /api/search/more requests, revealing suppliers hidden by
// a previous search with the same session, query and brand.
func (h *SearchHandler) More(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSearchRequest(w, r)
	if !ok {
		return
	}

	result, err := h.search.ShowMore(r.Context(), req.SessionID, req.Query, req.Brand)
	if err != nil {
		h.writeSearchError(w, err, req.Query)
		return
	}
	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode show-more response", zap.Error(err))
	}
}

// SupplierDetail handles GET /api/suppliers/{id} requests.
func (h *SearchHandler) SupplierDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "supplier id must be a positive integer")
		return
	}

	detail, err := h.search.SupplierDetail(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "supplier not found")
		return
	}
	if err != nil {
		h.logger.Error("Supplier detail lookup failed", zap.Int64("supplier_id", id), zap.Error(err))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "supplier lookup failed")
		return
	}
	if err := WriteJSON(w, http.StatusOK, detail); err != nil {
		h.logger.Error("Failed to encode supplier detail", zap.Error(err))
	}
}

// Brands handles GET /api/brands?q= requests.
func (h *SearchHandler) Brands(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "q parameter is required")
		return
	}

	brands, err := h.search.AvailableBrands(r.Context(), query)
	if err != nil {
		h.writeSearchError(w, err, query)
		return
	}
	if brands == nil {
		brands = []string{}
	}
	if err := WriteJSON(w, http.StatusOK, map[string][]string{"brands": brands}); err != nil {
		h.logger.Error("Failed to encode brands response", zap.Error(err))
	}
}

func (h *SearchHandler) writeSearchError(w http.ResponseWriter, err error, query string) {
	if errors.Is(err, apperrors.ErrSearchUnavailable) {
		h.logger.Error("Search unavailable", zap.String("query", query), zap.Error(err))
		_ = ErrorResponse(w, http.StatusServiceUnavailable, "search_unavailable", "search is temporarily unavailable")
		return
	}
	h.logger.Error("Search failed", zap.String("query", query), zap.Error(err))
	_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "search failed")
}
