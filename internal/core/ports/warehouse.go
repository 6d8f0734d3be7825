package ports

import (
	"context"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
)

// TableStore is the storage surface the incremental loader writes through.
// Implementations never update or delete rows on behalf of the loader.
type TableStore interface {
	// VerifyTable checks the table and its expected columns exist. Returns
	// *domain.SchemaMissingError naming the first missing object.
	VerifyTable(ctx context.Context, table string, columns []string) error

	// ExistingKeys returns the composite identity keys already persisted in
	// the table, built by joining the key columns with "|".
	ExistingKeys(ctx context.Context, table string, keyColumns []string) (map[string]struct{}, error)

	// InsertRows appends the given rows (a slice of one row type) inside a
	// single transaction scoped to this table.
	InsertRows(ctx context.Context, table string, rows any) error
}

// DimensionState exposes the persisted dimension state the resolver merges
// the current batch against.
type DimensionState interface {
	// VendorIndex returns persisted vendors keyed by lowercased trimmed name.
	VendorIndex(ctx context.Context) (map[string]domain.Vendor, error)

	// ProductIndex returns persisted products keyed by (vendor, product)
	// lowercased trimmed names.
	ProductIndex(ctx context.Context) (map[domain.ProductKey]domain.Product, error)

	// SourceIndex returns persisted source name to source_id.
	SourceIndex(ctx context.Context) (map[string]int64, error)
}

// Warehouse is the full storage port of the pipeline: append-only loading,
// dimension lookups, the union-recompute of dimension aggregates and the
// explicitly destructive reset used only by the analytics rebuild.
type Warehouse interface {
	TableStore
	DimensionState

	// RefreshDimensionAggregates recomputes vendor and product counts and
	// first/last CVE date bounds by scanning referencing rows (bridge joined
	// with dim_cve). Counts never decrement because the star tables are
	// append-only.
	RefreshDimensionAggregates(ctx context.Context) error

	// ResetTable destroys all rows in the named table. Deliberately separate
	// from the append path so the destructive operation is visible at the
	// call site.
	ResetTable(ctx context.Context, table string) error

	// Close releases the underlying connection.
	Close() error
}

// AnalyticsReader provides the star-schema reads the gold analytics layer
// aggregates over.
type AnalyticsReader interface {
	Cves(ctx context.Context) ([]domain.DimCve, error)
	Vendors(ctx context.Context) ([]domain.Vendor, error)
	Products(ctx context.Context) ([]domain.Product, error)
	Bridge(ctx context.Context) ([]domain.BridgeCveProduct, error)

	// Observations returns a version-agnostic view over the three fact
	// tables.
	Observations(ctx context.Context) ([]domain.ScoreObservation, error)
}
