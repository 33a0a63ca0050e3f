// Package storage is the object-store boundary of the sync engine: listing
// the day's batch files, fetching their bytes, and exposing a content
// fingerprint cheap enough to check before downloading anything.
package storage

import "context"

// FileRef identifies one batch file in the store. ETag is the content
// fingerprint: it changes if and only if the bytes change, so the pair
// (Key, ETag) is the idempotency identity of a delivery.
type FileRef struct {
	Key  string
	ETag string
}

// ObjectStore lists and fetches supplier batch files.
type ObjectStore interface {
	// ListProductFiles returns refs for every product file delivered for the
	// given date suffix (YYYY_MM_DD), fingerprints included, without
	// downloading content.
	ListProductFiles(ctx context.Context, dateSuffix string) ([]FileRef, error)

	// Fetch downloads the raw bytes of one object.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Fingerprint returns the current ETag of one object via a metadata
	// call, used for the supplier master file which is not date-stamped.
	Fingerprint(ctx context.Context, key string) (string, error)
}
