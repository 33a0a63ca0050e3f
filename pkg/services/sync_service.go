package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hapdco/catalog-engine/pkg/apperrors"
	"github.com/hapdco/catalog-engine/pkg/config"
	"github.com/hapdco/catalog-engine/pkg/database"
	"github.com/hapdco/catalog-engine/pkg/llm"
	"github.com/hapdco/catalog-engine/pkg/models"
	"github.com/hapdco/catalog-engine/pkg/normalize"
	"github.com/hapdco/catalog-engine/pkg/repositories"
	"github.com/hapdco/catalog-engine/pkg/retry"
	"github.com/hapdco/catalog-engine/pkg/storage"
)

// SyncCounts reports what one product-file reconciliation did (or attempted,
// when the transaction rolled back).
type SyncCounts struct {
	Inserted int
	Updated  int
	Deleted  int
	Dropped  int // rows with an invalid business key
}

// RunStats summarizes one full sync run.
type RunStats struct {
	SuppliersUpserted int
	FilesProcessed    int
	FilesSkipped      int
	FilesFailed       int
}

// SyncService reconciles the catalog store against the day's batch files.
// One Run is one scheduler invocation; Runs are restartable because files
// already recorded as ingested are skipped.
type SyncService interface {
	Run(ctx context.Context) (*RunStats, error)
	UpsertSuppliers(ctx context.Context, rows []models.SupplierRow) (int, error)
	SyncProducts(ctx context.Context, rows []models.ProductRow, supplierID int64) (*SyncCounts, error)
}

type syncService struct {
	db        *database.DB
	suppliers repositories.SupplierRepository
	products  repositories.ProductRepository
	ingested  repositories.IngestedFileRepository
	store     storage.ObjectStore
	embedder  llm.Embedder

	syncCfg      config.SyncConfig
	masterKey    string
	embedTimeout time.Duration
	logger       *zap.Logger

	// supplierLocks serializes work per supplier id: two deliveries for the
	// same supplier must never interleave, even across worker goroutines.
	mu            sync.Mutex
	supplierLocks map[int64]*sync.Mutex
}

// NewSyncService creates a new SyncService. embedder may be nil, in which
// case all products are stored without vectors.
func NewSyncService(
	db *database.DB,
	suppliers repositories.SupplierRepository,
	products repositories.ProductRepository,
	ingested repositories.IngestedFileRepository,
	store storage.ObjectStore,
	embedder llm.Embedder,
	syncCfg config.SyncConfig,
	masterKey string,
	embedTimeout time.Duration,
	logger *zap.Logger,
) SyncService {
	return &syncService{
		db:            db,
		suppliers:     suppliers,
		products:      products,
		ingested:      ingested,
		store:         store,
		embedder:      embedder,
		syncCfg:       syncCfg,
		masterKey:     masterKey,
		embedTimeout:  embedTimeout,
		logger:        logger.Named("sync"),
		supplierLocks: make(map[int64]*sync.Mutex),
	}
}

var _ SyncService = (*syncService)(nil)

func (s *syncService) lockSupplier(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.supplierLocks[id]
	if !ok {
		m = &sync.Mutex{}
		s.supplierLocks[id] = m
	}
	return m
}

// Run executes one full sync pass: refresh the supplier master, then
// reconcile every product file delivered for today. Individual file failures
// are logged and do not stop the run; only a store/listing failure aborts.
func (s *syncService) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}
	log := s.logger.With(zap.String("run_id", uuid.NewString()))

	if err := s.refreshSuppliers(ctx, stats); err != nil {
		// No partial progress is possible without knowing the suppliers
		// already in the store; but a stale master alone is survivable.
		log.Warn("supplier master refresh failed, using stored suppliers", zap.Error(err))
	}

	validIDs, err := s.suppliers.ListIDs(ctx)
	if err != nil {
		return stats, fmt.Errorf("list suppliers: %w", err)
	}

	dateSuffix, err := s.today()
	if err != nil {
		return stats, err
	}
	refs, err := s.store.ListProductFiles(ctx, dateSuffix)
	if err != nil {
		return stats, fmt.Errorf("list product files: %w", err)
	}
	if len(refs) == 0 {
		log.Info("no product files for today", zap.String("date", dateSuffix))
		return stats, nil
	}

	items := make([]workItem[*SyncCounts], 0, len(refs))
	for _, ref := range refs {
		ref := ref
		items = append(items, workItem[*SyncCounts]{
			ID: ref.Key,
			Execute: func(ctx context.Context) (*SyncCounts, error) {
				return s.syncFile(ctx, ref, validIDs)
			},
		})
	}

	for _, res := range runPool(ctx, s.syncCfg.Workers, log, items) {
		switch {
		case res.Err == nil:
			stats.FilesProcessed++
		case errors.Is(res.Err, apperrors.ErrFileSkipped):
			stats.FilesSkipped++
		default:
			stats.FilesFailed++
			log.Error("file sync failed",
				zap.String("key", res.ID), zap.Error(res.Err))
		}
	}

	log.Info("sync run finished",
		zap.Int("processed", stats.FilesProcessed),
		zap.Int("skipped", stats.FilesSkipped),
		zap.Int("failed", stats.FilesFailed))
	return stats, nil
}

func (s *syncService) today() (string, error) {
	loc, err := time.LoadLocation(s.syncCfg.Timezone)
	if err != nil {
		return "", fmt.Errorf("load timezone %q: %w", s.syncCfg.Timezone, err)
	}
	return time.Now().In(loc).Format("2006_01_02"), nil
}

func (s *syncService) refreshSuppliers(ctx context.Context, stats *RunStats) error {
	data, err := s.store.Fetch(ctx, s.masterKey)
	if err != nil {
		return fmt.Errorf("fetch supplier master: %w", err)
	}
	rows, dropped, err := models.ParseSupplierCSV(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse supplier master: %w", err)
	}
	if dropped > 0 {
		s.logger.Warn("supplier master rows dropped for invalid id", zap.Int("count", dropped))
	}
	n, err := s.UpsertSuppliers(ctx, rows)
	stats.SuppliersUpserted = n
	return err
}

// UpsertSuppliers writes every master row. A row failure is logged and
// skipped; the batch continues.
func (s *syncService) UpsertSuppliers(ctx context.Context, rows []models.SupplierRow) (int, error) {
	upserted := 0
	for _, row := range rows {
		supplier := &models.Supplier{
			ID:             row.ID,
			Name:           row.Name,
			LegalName:      row.LegalName,
			SalesContact:   row.SalesContact,
			PhoneField:     row.PhoneField,
			Website:        row.Website,
			Delivers:       row.Delivers,
			MinOrder:       row.MinOrder,
			OffersCredit:   row.OffersCredit,
			Rating:         row.Rating,
			MembershipTier: row.MembershipTier,
		}
		if err := s.suppliers.Upsert(ctx, supplier); err != nil {
			s.logger.Warn("supplier upsert failed",
				zap.Int64("supplier_id", row.ID), zap.Error(err))
			continue
		}
		upserted++
	}
	return upserted, nil
}

// supplierIDFromKey extracts the supplier id prefix from a product file key
// such as "data/17_productos_2025_08_30.csv".
func supplierIDFromKey(key string) (int64, bool) {
	name := path.Base(key)
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 0, false
	}
	return normalize.ParsePositiveInt(name[:idx])
}

// syncFile reconciles one product file end to end: orphan check, idempotency
// check, fetch, parse, diff-and-commit, and the ingestion record. Skips are
// reported as apperrors.ErrFileSkipped so the run can count them apart from
// failures.
func (s *syncService) syncFile(ctx context.Context, ref storage.FileRef, validIDs map[int64]struct{}) (*SyncCounts, error) {
	supplierID, ok := supplierIDFromKey(ref.Key)
	if !ok {
		s.logger.Warn("file name carries no supplier id", zap.String("key", ref.Key))
		return nil, fmt.Errorf("%w: unparseable file name", apperrors.ErrFileSkipped)
	}

	// Orphan files are skipped WITHOUT an ingestion record, so they are
	// retried once the supplier is added to the master.
	if _, known := validIDs[supplierID]; !known {
		s.logger.Warn("supplier not in master list, file deferred",
			zap.String("key", ref.Key), zap.Int64("supplier_id", supplierID))
		return nil, fmt.Errorf("%w: %w", apperrors.ErrFileSkipped, apperrors.ErrSupplierUnknown)
	}

	lock := s.lockSupplier(supplierID)
	lock.Lock()
	defer lock.Unlock()

	seen, err := s.ingested.Seen(ctx, ref.Key, ref.ETag)
	if err != nil {
		return nil, err
	}
	if seen {
		s.logger.Info("file already ingested, skipping",
			zap.String("key", ref.Key), zap.String("etag", ref.ETag))
		return nil, fmt.Errorf("%w: already ingested", apperrors.ErrFileSkipped)
	}

	data, err := s.store.Fetch(ctx, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref.Key, err)
	}
	rows, err := models.ParseProductCSV(bytes.NewReader(data), supplierID)
	if err != nil {
		// Missing required column or malformed CSV: whole file skipped, not
		// marked ingested, retried next run.
		return nil, fmt.Errorf("parse %s: %w", ref.Key, err)
	}

	counts, err := s.SyncProducts(ctx, rows, supplierID)
	if err != nil {
		return counts, err
	}

	if err := s.ingested.Record(ctx, ref.Key, ref.ETag); err != nil {
		return counts, err
	}

	s.logger.Info("file synced",
		zap.String("key", ref.Key),
		zap.Int64("supplier_id", supplierID),
		zap.Int("inserted", counts.Inserted),
		zap.Int("updated", counts.Updated),
		zap.Int("deleted", counts.Deleted))
	return counts, nil
}

// SyncProducts reconciles one supplier's rows against the store: the file is
// authoritative, so keys missing from it are deleted, new keys inserted, and
// existing keys get only their volatile fields updated. Embeddings are
// computed before the transaction opens so collaborator latency never holds
// row locks; the diff-and-commit itself is one transaction.
func (s *syncService) SyncProducts(ctx context.Context, rows []models.ProductRow, supplierID int64) (*SyncCounts, error) {
	counts := &SyncCounts{}

	// 1. Drop rows whose business key failed validation.
	valid := make([]models.ProductRow, 0, len(rows))
	var offenders []string
	for _, row := range rows {
		if row.SupplierProductID == 0 {
			counts.Dropped++
			if len(offenders) < 5 {
				offenders = append(offenders, row.Name)
			}
			continue
		}
		valid = append(valid, row)
	}
	if counts.Dropped > 0 {
		s.logger.Warn("rows dropped for invalid product id",
			zap.Int64("supplier_id", supplierID),
			zap.Int("count", counts.Dropped),
			zap.Strings("sample", offenders))
	}

	// 2. Within-file dedupe by business key, last occurrence wins.
	byKey := make(map[int64]models.ProductRow, len(valid))
	order := make([]int64, 0, len(valid))
	for _, row := range valid {
		if _, exists := byKey[row.SupplierProductID]; !exists {
			order = append(order, row.SupplierProductID)
		}
		byKey[row.SupplierProductID] = row
	}

	// 3. Diff against the store.
	storeIDs, err := s.products.ListBusinessKeys(ctx, supplierID)
	if err != nil {
		return counts, err
	}

	var toInsert, toUpdate, toDelete []int64
	for _, id := range order {
		if _, exists := storeIDs[id]; exists {
			toUpdate = append(toUpdate, id)
		} else {
			toInsert = append(toInsert, id)
		}
	}
	for id := range storeIDs {
		if _, exists := byKey[id]; !exists {
			toDelete = append(toDelete, id)
		}
	}

	// 4. Build new rows, embeddings included, outside the transaction.
	inserts := make([]*models.Product, 0, len(toInsert))
	for _, id := range toInsert {
		row := byKey[id]
		product, priceOK := row.Product()
		if !priceOK && row.PriceRaw != "" {
			s.logger.Warn("unparseable price, defaulting to 0",
				zap.Int64("supplier_id", supplierID),
				zap.Int64("product_id", id),
				zap.String("raw", row.PriceRaw))
		}
		product.Embedding = s.embed(ctx, product.EmbeddingText())
		inserts = append(inserts, product)
	}

	// 5-7. One transaction per supplier file.
	err = database.InTx(ctx, s.db, func(ctx context.Context) error {
		for _, product := range inserts {
			if err := s.products.Insert(ctx, product); err != nil {
				return err
			}
			counts.Inserted++
		}
		for _, id := range toUpdate {
			row := byKey[id]
			product, priceOK := row.Product()
			if !priceOK && row.PriceRaw != "" {
				s.logger.Warn("unparseable price, defaulting to 0",
					zap.Int64("supplier_id", supplierID),
					zap.Int64("product_id", id),
					zap.String("raw", row.PriceRaw))
			}
			if err := s.products.UpdateVolatile(ctx, product); err != nil {
				return err
			}
			counts.Updated++
		}
		deleted, err := s.products.DeleteByBusinessKeys(ctx, supplierID, toDelete)
		if err != nil {
			return err
		}
		counts.Deleted = int(deleted)
		return nil
	})
	if err != nil {
		s.logger.Error("product sync rolled back",
			zap.Int64("supplier_id", supplierID),
			zap.Int("attempted_inserts", len(toInsert)),
			zap.Int("attempted_updates", len(toUpdate)),
			zap.Int("attempted_deletes", len(toDelete)),
			zap.Error(err))
		return counts, fmt.Errorf("sync products for supplier %d: %w", supplierID, err)
	}
	return counts, nil
}

// embed computes a product embedding under a deadline with retries. Any
// failure yields a nil vector: the product is still stored and remains
// reachable through the lexical path.
func (s *syncService) embed(ctx context.Context, text string) []float32 {
	if s.embedder == nil || text == "" {
		return nil
	}
	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	defer cancel()

	var vec []float32
	err := retry.DoIfRetryable(embedCtx, retry.DefaultConfig(), func() error {
		v, err := s.embedder.Embed(embedCtx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		s.logger.Warn("embedding failed, storing product without vector",
			zap.String("text", text), zap.Error(err))
		return nil
	}
	return vec
}
