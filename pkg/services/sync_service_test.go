package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hapdco/catalog-engine/pkg/config"
	"github.com/hapdco/catalog-engine/pkg/llm"
	"github.com/hapdco/catalog-engine/pkg/models"
	"github.com/hapdco/catalog-engine/pkg/storage"
)

const testMasterKey = "data/proveedores.csv"

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		Workers:            2,
		Timezone:           "UTC",
		DefaultCountryCode: "52",
	}
}

func newTestSyncService(
	products *mockProductRepo,
	suppliers *mockSupplierRepo,
	ingested *mockIngestedRepo,
	store storage.ObjectStore,
	embedder llm.Embedder,
) SyncService {
	return NewSyncService(nil, suppliers, products, ingested, store, embedder,
		testSyncConfig(), testMasterKey, time.Second, zap.NewNop())
}

func productRow(supplierID, productID int64, name, price string) models.ProductRow {
	return models.ProductRow{
		SupplierID:        supplierID,
		SupplierProductID: productID,
		Name:              name,
		PriceRaw:          price,
		Currency:          "MXN",
	}
}

func TestSyncProductsDiff(t *testing.T) {
	products := &mockProductRepo{
		Keys: map[int64]struct{}{1: {}, 2: {}, 3: {}},
	}
	svc := newTestSyncService(products, &mockSupplierRepo{}, &mockIngestedRepo{}, &storage.MockObjectStore{}, nil)

	rows := []models.ProductRow{
		productRow(7, 2, "dos", "10"),
		productRow(7, 3, "tres", "20"),
		productRow(7, 4, "cuatro", "30"),
	}
	counts, err := svc.SyncProducts(context.Background(), rows, 7)
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Inserted)
	assert.Equal(t, 2, counts.Updated)
	assert.Equal(t, 1, counts.Deleted)
	require.Len(t, products.Inserted, 1)
	assert.Equal(t, int64(4), products.Inserted[0].SupplierProductID)
	assert.Equal(t, []int64{1}, products.Deleted)
}

func TestSyncProductsDuplicateKeyLastWins(t *testing.T) {
	products := &mockProductRepo{}
	svc := newTestSyncService(products, &mockSupplierRepo{}, &mockIngestedRepo{}, &storage.MockObjectStore{}, nil)

	rows := []models.ProductRow{
		productRow(7, 5, "primera", "10"),
		productRow(7, 5, "ultima", "99"),
	}
	counts, err := svc.SyncProducts(context.Background(), rows, 7)
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Inserted)
	require.Len(t, products.Inserted, 1)
	assert.Equal(t, "ultima", products.Inserted[0].Name)
	assert.Equal(t, 99.0, products.Inserted[0].UnitPrice)
}

func TestSyncProductsInvalidKeyDropped(t *testing.T) {
	products := &mockProductRepo{}
	svc := newTestSyncService(products, &mockSupplierRepo{}, &mockIngestedRepo{}, &storage.MockObjectStore{}, nil)

	rows := []models.ProductRow{
		productRow(7, 0, "sin id", "10"),
		productRow(7, 8, "valida", "20"),
	}
	counts, err := svc.SyncProducts(context.Background(), rows, 7)
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Dropped)
	assert.Equal(t, 1, counts.Inserted)
}

func TestSyncProductsEmbeddingFailureStoresNilVector(t *testing.T) {
	products := &mockProductRepo{}
	embedder := &llm.MockEmbedder{
		EmbedFunc: func(ctx context.Context, input string) ([]float32, error) {
			return nil, errors.New("api down")
		},
	}
	svc := newTestSyncService(products, &mockSupplierRepo{}, &mockIngestedRepo{}, &storage.MockObjectStore{}, embedder)

	counts, err := svc.SyncProducts(context.Background(), []models.ProductRow{
		productRow(7, 8, "atun", "20"),
	}, 7)
	require.NoError(t, err)

	assert.Equal(t, 1, counts.Inserted)
	require.Len(t, products.Inserted, 1)
	assert.Nil(t, products.Inserted[0].Embedding)
}

func TestSyncProductsEmbedsNewRows(t *testing.T) {
	products := &mockProductRepo{}
	vec := make([]float32, models.EmbeddingDim)
	vec[0] = 0.5
	embedder := &llm.MockEmbedder{
		EmbedFunc: func(ctx context.Context, input string) ([]float32, error) {
			assert.Equal(t, "atun", input)
			return vec, nil
		},
	}
	svc := newTestSyncService(products, &mockSupplierRepo{}, &mockIngestedRepo{}, &storage.MockObjectStore{}, embedder)

	_, err := svc.SyncProducts(context.Background(), []models.ProductRow{
		productRow(7, 8, "atun", "20"),
	}, 7)
	require.NoError(t, err)
	require.Len(t, products.Inserted, 1)
	assert.Equal(t, vec, products.Inserted[0].Embedding)
}

func TestSyncProductsRollsBackOnInsertFailure(t *testing.T) {
	products := &mockProductRepo{
		InsertFunc: func(ctx context.Context, p *models.Product) error {
			return errors.New("unique violation")
		},
	}
	svc := newTestSyncService(products, &mockSupplierRepo{}, &mockIngestedRepo{}, &storage.MockObjectStore{}, nil)

	_, err := svc.SyncProducts(context.Background(), []models.ProductRow{
		productRow(7, 8, "atun", "20"),
	}, 7)
	assert.Error(t, err)
}

func TestUpsertSuppliersToleratesRowFailures(t *testing.T) {
	suppliers := &mockSupplierRepo{}
	suppliers.UpsertFunc = func(ctx context.Context, s *models.Supplier) error {
		if s.ID == 2 {
			return errors.New("constraint violation")
		}
		suppliers.Upserts = append(suppliers.Upserts, s)
		return nil
	}
	svc := newTestSyncService(&mockProductRepo{}, suppliers, &mockIngestedRepo{}, &storage.MockObjectStore{}, nil)

	n, err := svc.UpsertSuppliers(context.Background(), []models.SupplierRow{
		{ID: 1, Name: "Uno"},
		{ID: 2, Name: "Dos"},
		{ID: 3, Name: "Tres"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, suppliers.Upserts, 2)
}

func todayKey(supplierID int64) string {
	date := time.Now().UTC().Format("2006_01_02")
	return fmt.Sprintf("data/%d_productos_%s.csv", supplierID, date)
}

func runTestStore(supplierID int64, productCSV string) *storage.MockObjectStore {
	masterCSV := fmt.Sprintf("id_proveedor,nombre_comercial\n%d,Abarrotes Norte\n", supplierID)
	key := todayKey(supplierID)
	store := &storage.MockObjectStore{
		Objects: map[string][]byte{
			testMasterKey: []byte(masterCSV),
			key:           []byte(productCSV),
		},
		ETags: map[string]string{key: "etag-1"},
	}
	store.ListProductFilesFunc = func(ctx context.Context, dateSuffix string) ([]storage.FileRef, error) {
		return []storage.FileRef{{Key: key, ETag: "etag-1"}}, nil
	}
	return store
}

func TestRunEndToEnd(t *testing.T) {
	products := &mockProductRepo{}
	suppliers := &mockSupplierRepo{}
	ingested := &mockIngestedRepo{}
	store := runTestStore(7, "id_producto,nombre_producto,precio_unidad\n101,Atun,10\n102,Aceite,20\n")

	svc := newTestSyncService(products, suppliers, ingested, store, nil)
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.SuppliersUpserted)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.Zero(t, stats.FilesSkipped)
	assert.Zero(t, stats.FilesFailed)
	assert.Len(t, products.Inserted, 2)
	assert.Len(t, ingested.Records, 1)
}

func TestRunIsIdempotentAcrossRestarts(t *testing.T) {
	products := &mockProductRepo{}
	suppliers := &mockSupplierRepo{}
	ingested := &mockIngestedRepo{}
	store := runTestStore(7, "id_producto,nombre_producto,precio_unidad\n101,Atun,10\n")

	svc := newTestSyncService(products, suppliers, ingested, store, nil)
	_, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, products.Inserted, 1)

	// Same file, same fingerprint: the second run must not touch products.
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Zero(t, stats.FilesProcessed)
	assert.Len(t, products.Inserted, 1)
}

func TestRunReprocessesChangedFile(t *testing.T) {
	products := &mockProductRepo{}
	suppliers := &mockSupplierRepo{}
	ingested := &mockIngestedRepo{}
	store := runTestStore(7, "id_producto,nombre_producto,precio_unidad\n101,Atun,10\n")

	svc := newTestSyncService(products, suppliers, ingested, store, nil)
	_, err := svc.Run(context.Background())
	require.NoError(t, err)

	// A redelivered file carries a new fingerprint and must be processed.
	key := todayKey(7)
	store.ListProductFilesFunc = func(ctx context.Context, dateSuffix string) ([]storage.FileRef, error) {
		return []storage.FileRef{{Key: key, ETag: "etag-2"}}, nil
	}
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesProcessed)
}

func TestRunSkipsOrphanFileWithoutRecordingIt(t *testing.T) {
	products := &mockProductRepo{}
	suppliers := &mockSupplierRepo{}
	ingested := &mockIngestedRepo{}
	store := runTestStore(7, "id_producto,nombre_producto\n101,Atun\n")

	// The listed file belongs to supplier 99, which the master does not know.
	orphanKey := todayKey(99)
	store.Objects[orphanKey] = []byte("id_producto,nombre_producto\n5,Algo\n")
	store.ListProductFilesFunc = func(ctx context.Context, dateSuffix string) ([]storage.FileRef, error) {
		return []storage.FileRef{{Key: orphanKey, ETag: "etag-9"}}, nil
	}

	svc := newTestSyncService(products, suppliers, ingested, store, nil)
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesSkipped)
	assert.Empty(t, products.Inserted)
	// No ingestion record: the file is retried once the supplier appears.
	assert.Empty(t, ingested.Records)
}

func TestRunSkipsUnparseableFileName(t *testing.T) {
	store := runTestStore(7, "")
	store.ListProductFilesFunc = func(ctx context.Context, dateSuffix string) ([]storage.FileRef, error) {
		return []storage.FileRef{{Key: "data/resumen.csv", ETag: "etag-x"}}, nil
	}

	svc := newTestSyncService(&mockProductRepo{}, &mockSupplierRepo{}, &mockIngestedRepo{}, store, nil)
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesSkipped)
}

func TestRunCountsFileFailures(t *testing.T) {
	products := &mockProductRepo{}
	ingested := &mockIngestedRepo{}
	// The product file is malformed: the required id column is missing.
	store := runTestStore(7, "nombre_producto\nAtun\n")

	svc := newTestSyncService(products, &mockSupplierRepo{}, ingested, store, nil)
	stats, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesFailed)
	// A failed file is not recorded, so the next run retries it.
	assert.Empty(t, ingested.Records)
}

func TestRunAbortsWhenListingFails(t *testing.T) {
	store := runTestStore(7, "")
	store.ListProductFilesFunc = func(ctx context.Context, dateSuffix string) ([]storage.FileRef, error) {
		return nil, errors.New("bucket unreachable")
	}

	svc := newTestSyncService(&mockProductRepo{}, &mockSupplierRepo{}, &mockIngestedRepo{}, store, nil)
	_, err := svc.Run(context.Background())
	assert.Error(t, err)
}

func TestSupplierIDFromKey(t *testing.T) {
	id, ok := supplierIDFromKey("data/17_productos_2025_08_30.csv")
	assert.True(t, ok)
	assert.Equal(t, int64(17), id)

	_, ok = supplierIDFromKey("data/resumen.csv")
	assert.False(t, ok)

	_, ok = supplierIDFromKey("data/_productos_2025_08_30.csv")
	assert.False(t, ok)
}
