// Package storage defines the persistence contract for scan records.
// The registry owns live scans in memory; a ScanStore lets completed
// results outlive a process restart and makes the retention policy
// explicit instead of "lives until restart".
package storage

import (
	"context"
	"time"

	"dirscan/internal/scan"
)

// Record is the persisted form of a scan and its frozen result views.
// Result fields are populated only once the scan completes.
type Record struct {
	ID          string
	Path        string
	Status      scan.Status
	CreatedAt   time.Time
	CompletedAt time.Time
	Error       string
	Options     scan.Options

	Tree       *scan.DirectoryEntry
	Statistics *scan.Statistics
	Duplicates []*scan.DuplicateGroup
	Skipped    []*scan.SkippedEntry
}

// ScanStore describes the persistence operations required by the
// registry. Put is an upsert keyed by Record.ID.
type ScanStore interface {
	Put(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, bool, error)
	List(ctx context.Context) ([]*Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
