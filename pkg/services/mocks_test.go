package services

import (
	"context"
	"fmt"

	"github.com/hapdco/catalog-engine/pkg/apperrors"
	"github.com/hapdco/catalog-engine/pkg/models"
)

func f64(v float64) *float64 { return &v }

// mockProductRepo implements repositories.ProductRepository. Function fields
// override behavior; otherwise calls are recorded against the in-memory
// state below.
type mockProductRepo struct {
	ListBusinessKeysFunc     func(ctx context.Context, supplierID int64) (map[int64]struct{}, error)
	InsertFunc               func(ctx context.Context, p *models.Product) error
	UpdateVolatileFunc       func(ctx context.Context, p *models.Product) error
	DeleteByBusinessKeysFunc func(ctx context.Context, supplierID int64, ids []int64) (int64, error)
	SearchHybridFunc         func(ctx context.Context, query string, embedding []float32, limit int) ([]models.ProductCandidate, error)

	Keys     map[int64]struct{}
	Inserted []*models.Product
	Updated  []*models.Product
	Deleted  []int64

	SearchCalls   int
	LastEmbedding []float32
}

func (m *mockProductRepo) ListBusinessKeys(ctx context.Context, supplierID int64) (map[int64]struct{}, error) {
	if m.ListBusinessKeysFunc != nil {
		return m.ListBusinessKeysFunc(ctx, supplierID)
	}
	keys := make(map[int64]struct{}, len(m.Keys))
	for k := range m.Keys {
		keys[k] = struct{}{}
	}
	return keys, nil
}

func (m *mockProductRepo) Insert(ctx context.Context, p *models.Product) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, p)
	}
	m.Inserted = append(m.Inserted, p)
	return nil
}

func (m *mockProductRepo) UpdateVolatile(ctx context.Context, p *models.Product) error {
	if m.UpdateVolatileFunc != nil {
		return m.UpdateVolatileFunc(ctx, p)
	}
	m.Updated = append(m.Updated, p)
	return nil
}

func (m *mockProductRepo) DeleteByBusinessKeys(ctx context.Context, supplierID int64, ids []int64) (int64, error) {
	if m.DeleteByBusinessKeysFunc != nil {
		return m.DeleteByBusinessKeysFunc(ctx, supplierID, ids)
	}
	m.Deleted = append(m.Deleted, ids...)
	return int64(len(ids)), nil
}

func (m *mockProductRepo) SearchHybrid(ctx context.Context, query string, embedding []float32, limit int) ([]models.ProductCandidate, error) {
	m.SearchCalls++
	m.LastEmbedding = embedding
	if m.SearchHybridFunc != nil {
		return m.SearchHybridFunc(ctx, query, embedding, limit)
	}
	return nil, nil
}

// mockSupplierRepo implements repositories.SupplierRepository.
type mockSupplierRepo struct {
	UpsertFunc  func(ctx context.Context, s *models.Supplier) error
	GetByIDFunc func(ctx context.Context, id int64) (*models.Supplier, error)
	ListIDsFunc func(ctx context.Context) (map[int64]struct{}, error)

	Suppliers map[int64]*models.Supplier
	Upserts   []*models.Supplier
}

func (m *mockSupplierRepo) Upsert(ctx context.Context, s *models.Supplier) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, s)
	}
	m.Upserts = append(m.Upserts, s)
	return nil
}

func (m *mockSupplierRepo) GetByID(ctx context.Context, id int64) (*models.Supplier, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	if s, ok := m.Suppliers[id]; ok {
		return s, nil
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockSupplierRepo) ListIDs(ctx context.Context) (map[int64]struct{}, error) {
	if m.ListIDsFunc != nil {
		return m.ListIDsFunc(ctx)
	}
	ids := make(map[int64]struct{}, len(m.Suppliers))
	for id := range m.Suppliers {
		ids[id] = struct{}{}
	}
	for _, s := range m.Upserts {
		ids[s.ID] = struct{}{}
	}
	return ids, nil
}

// mockIngestedRepo implements repositories.IngestedFileRepository.
type mockIngestedRepo struct {
	SeenSet map[string]struct{}
	Records []string
}

func ingestedKey(objectKey, etag string) string {
	return fmt.Sprintf("%s|%s", objectKey, etag)
}

func (m *mockIngestedRepo) Seen(ctx context.Context, objectKey, etag string) (bool, error) {
	_, seen := m.SeenSet[ingestedKey(objectKey, etag)]
	return seen, nil
}

func (m *mockIngestedRepo) Record(ctx context.Context, objectKey, etag string) error {
	if m.SeenSet == nil {
		m.SeenSet = make(map[string]struct{})
	}
	m.SeenSet[ingestedKey(objectKey, etag)] = struct{}{}
	m.Records = append(m.Records, ingestedKey(objectKey, etag))
	return nil
}

// memSessionCache is an in-memory SessionCache for tests.
type memSessionCache struct {
	entries map[string]*pendingResults
}

func newMemSessionCache() *memSessionCache {
	return &memSessionCache{entries: make(map[string]*pendingResults)}
}

func (c *memSessionCache) Stash(ctx context.Context, sessionID, query, brand string, pending *pendingResults) error {
	key := pendingKey(sessionID, query, brand)
	if pending == nil || len(pending.Suppliers) == 0 {
		delete(c.entries, key)
		return nil
	}
	c.entries[key] = pending
	return nil
}

func (c *memSessionCache) Pop(ctx context.Context, sessionID, query, brand string) (*pendingResults, error) {
	key := pendingKey(sessionID, query, brand)
	pending := c.entries[key]
	delete(c.entries, key)
	return pending, nil
}
