package ports

import (
	"context"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
)

// BronzeStore is the raw-ingest staging area. The scraping layer hands over
// batches of raw records; the pipeline reads them back unchanged.
type BronzeStore interface {
	// StoreBatch persists raw records as scraped. Re-storing a CVE appends a
	// superseding row, it never mutates the old one.
	StoreBatch(ctx context.Context, records []domain.RawCveRecord) (int, error)

	// PendingBatch returns the latest stored version of every raw record.
	PendingBatch(ctx context.Context) ([]domain.RawCveRecord, error)

	// Count returns the number of staged raw rows.
	Count(ctx context.Context) (int, error)

	Close() error
}
