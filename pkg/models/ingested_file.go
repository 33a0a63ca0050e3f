package models

import "time"

// IngestedFile records a processed batch file so a re-delivered byte-identical
// file is never reprocessed. Identity is (ObjectKey, ETag): a changed file
// gets a new ETag and is processed in full again.
type IngestedFile struct {
	ID          int64
	ObjectKey   string
	ETag        string
	ProcessedAt time.Time
}
