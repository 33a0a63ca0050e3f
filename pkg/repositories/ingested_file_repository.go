package repositories

import (
	"context"
	"fmt"

	"github.com/hapdco/catalog-engine/pkg/database"
)

// IngestedFileRepository is the idempotency guard of the sync engine: a
// (object key, fingerprint) pair is recorded after a file's rows are synced,
// and a pair seen again means the file must not be reprocessed.
type IngestedFileRepository interface {
	Seen(ctx context.Context, objectKey, etag string) (bool, error)
	Record(ctx context.Context, objectKey, etag string) error
}

type ingestedFileRepository struct {
	db *database.DB
}

// NewIngestedFileRepository creates a new IngestedFileRepository.
func NewIngestedFileRepository(db *database.DB) IngestedFileRepository {
	return &ingestedFileRepository{db: db}
}

var _ IngestedFileRepository = (*ingestedFileRepository)(nil)

func (r *ingestedFileRepository) Seen(ctx context.Context, objectKey, etag string) (bool, error) {
	q := database.QuerierFrom(ctx, r.db)

	var seen bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ingested_files WHERE object_key = $1 AND etag = $2)`,
		objectKey, etag,
	).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("failed to check ingested file %s: %w", objectKey, err)
	}
	return seen, nil
}

// Record is idempotent: re-recording the same pair is a no-op, which keeps a
// restarted run from failing on files it already finished.
func (r *ingestedFileRepository) Record(ctx context.Context, objectKey, etag string) error {
	q := database.QuerierFrom(ctx, r.db)

	_, err := q.Exec(ctx,
		`INSERT INTO ingested_files (object_key, etag) VALUES ($1, $2)
		 ON CONFLICT (object_key, etag) DO NOTHING`,
		objectKey, etag)
	if err != nil {
		return fmt.Errorf("failed to record ingested file %s: %w", objectKey, err)
	}
	return nil
}
