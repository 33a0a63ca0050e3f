package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hapdco/catalog-engine/pkg/apperrors"
	"github.com/hapdco/catalog-engine/pkg/models"
)

// mockSearchService implements services.SearchService via function fields.
type mockSearchService struct {
	SearchFunc          func(ctx context.Context, sessionID, query, brand string) (*models.SearchResult, error)
	ShowMoreFunc        func(ctx context.Context, sessionID, query, brand string) (*models.SearchResult, error)
	SupplierDetailFunc  func(ctx context.Context, supplierID int64) (*models.SupplierDetail, error)
	AvailableBrandsFunc func(ctx context.Context, query string) ([]string, error)
}

func (m *mockSearchService) Search(ctx context.Context, sessionID, query, brand string) (*models.SearchResult, error) {
	return m.SearchFunc(ctx, sessionID, query, brand)
}

func (m *mockSearchService) ShowMore(ctx context.Context, sessionID, query, brand string) (*models.SearchResult, error) {
	return m.ShowMoreFunc(ctx, sessionID, query, brand)
}

func (m *mockSearchService) SupplierDetail(ctx context.Context, supplierID int64) (*models.SupplierDetail, error) {
	return m.SupplierDetailFunc(ctx, supplierID)
}

func (m *mockSearchService) AvailableBrands(ctx context.Context, query string) ([]string, error) {
	return m.AvailableBrandsFunc(ctx, query)
}

func newTestMux(svc *mockSearchService) *http.ServeMux {
	mux := http.NewServeMux()
	NewSearchHandler(svc, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestSearchEndpoint(t *testing.T) {
	svc := &mockSearchService{
		SearchFunc: func(ctx context.Context, sessionID, query, brand string) (*models.SearchResult, error) {
			assert.Equal(t, "s1", sessionID)
			assert.Equal(t, "atun", query)
			assert.Equal(t, "DelMar", brand)
			return &models.SearchResult{
				Tier:      models.TierAlta,
				Suppliers: []models.SupplierResult{{SupplierID: 7, Name: "Norte"}},
			}, nil
		},
	}
	mux := newTestMux(svc)

	body := `{"session_id":"s1","query":"atun","brand":"DelMar"}`
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result models.SearchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, models.TierAlta, result.Tier)
	require.Len(t, result.Suppliers, 1)
	assert.Equal(t, int64(7), result.Suppliers[0].SupplierID)
}

func TestSearchEndpointValidation(t *testing.T) {
	svc := &mockSearchService{}
	mux := newTestMux(svc)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "nope"},
		{"missing session", `{"query":"atun"}`},
		{"missing query", `{"session_id":"s1"}`},
		{"blank query", `{"session_id":"s1","query":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSearchEndpointUnavailable(t *testing.T) {
	svc := &mockSearchService{
		SearchFunc: func(ctx context.Context, sessionID, query, brand string) (*models.SearchResult, error) {
			return nil, apperrors.ErrSearchUnavailable
		},
	}
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/search",
		strings.NewReader(`{"session_id":"s1","query":"atun"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestShowMoreEndpoint(t *testing.T) {
	svc := &mockSearchService{
		ShowMoreFunc: func(ctx context.Context, sessionID, query, brand string) (*models.SearchResult, error) {
			return &models.SearchResult{Tier: models.TierNula, Suppliers: []models.SupplierResult{}}, nil
		},
	}
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/search/more",
		strings.NewReader(`{"session_id":"s1","query":"atun"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result models.SearchResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, models.TierNula, result.Tier)
}

func TestSupplierDetailEndpoint(t *testing.T) {
	svc := &mockSearchService{
		SupplierDetailFunc: func(ctx context.Context, supplierID int64) (*models.SupplierDetail, error) {
			if supplierID != 7 {
				return nil, apperrors.ErrNotFound
			}
			return &models.SupplierDetail{SupplierID: 7, Name: "Norte"}, nil
		},
	}
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/suppliers/7", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/suppliers/99", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/suppliers/abc", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrandsEndpoint(t *testing.T) {
	svc := &mockSearchService{
		AvailableBrandsFunc: func(ctx context.Context, query string) ([]string, error) {
			assert.Equal(t, "atun", query)
			return []string{"DelMar", "Dolores"}, nil
		},
	}
	mux := newTestMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/brands?q=atun", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string][]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"DelMar", "Dolores"}, resp["brands"])

	req = httptest.NewRequest(http.MethodGet, "/api/brands", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
