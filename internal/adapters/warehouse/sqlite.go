package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
	"github.com/lcalzada-xor/cvemart/internal/core/ports"
)

// SQLiteAdapter implements ports.Warehouse and ports.AnalyticsReader using
// GORM and SQLite.
type SQLiteAdapter struct {
	db *gorm.DB
}

// models maps every known table to its GORM model, used for schema
// verification and migration.
var models = map[string]any{
	domain.TableDimCve:            &domain.DimCve{},
	domain.TableDimVendor:         &domain.Vendor{},
	domain.TableDimProducts:       &domain.Product{},
	domain.TableDimSource:         &domain.CvssSource{},
	domain.TableCvssV2:            &domain.CvssFactV2{},
	domain.TableCvssV3:            &domain.CvssFactV3{},
	domain.TableCvssV4:            &domain.CvssFactV4{},
	domain.TableBridge:            &domain.BridgeCveProduct{},
	domain.TableGoldCveSummary:    &domain.CveSummary{},
	domain.TableGoldVendorMetrics: &domain.VendorMetrics{},
	domain.TableGoldProductRisk:   &domain.ProductRisk{},
	domain.TableGoldComparison:    &domain.VersionComparison{},
}

// NewSQLiteAdapter opens the warehouse database. It does not create the
// schema; call Migrate explicitly where bootstrapping is wanted.
func NewSQLiteAdapter(path string) (*SQLiteAdapter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	return &SQLiteAdapter{db: db}, nil
}

// Migrate creates all star and gold tables plus the lookup indexes.
func (a *SQLiteAdapter) Migrate() error {
	targets := make([]any, 0, len(models))
	for _, table := range domain.TableOrder {
		targets = append(targets, models[table])
	}
	targets = append(targets,
		models[domain.TableGoldCveSummary],
		models[domain.TableGoldVendorMetrics],
		models[domain.TableGoldProductRisk],
		models[domain.TableGoldComparison],
	)
	if err := a.db.AutoMigrate(targets...); err != nil {
		return err
	}

	// Create indices for performance
	a.db.Exec("CREATE INDEX IF NOT EXISTS idx_bridge_cve ON bridge_cve_products(cve_id)")
	a.db.Exec("CREATE INDEX IF NOT EXISTS idx_bridge_product ON bridge_cve_products(product_id)")
	a.db.Exec("CREATE INDEX IF NOT EXISTS idx_cvss_v2_cve ON cvss_v2(cve_id)")
	a.db.Exec("CREATE INDEX IF NOT EXISTS idx_cvss_v3_cve ON cvss_v3(cve_id)")
	a.db.Exec("CREATE INDEX IF NOT EXISTS idx_cvss_v4_cve ON cvss_v4(cve_id)")
	a.db.Exec("CREATE INDEX IF NOT EXISTS idx_products_vendor ON dim_products(vendor_id)")
	a.db.Exec("CREATE INDEX IF NOT EXISTS idx_cve_published ON dim_cve(published_date)")
	return nil
}

// VerifyTable checks the table and its columns exist before any write.
func (a *SQLiteAdapter) VerifyTable(_ context.Context, table string, columns []string) error {
	model, ok := models[table]
	if !ok {
		return &domain.SchemaMissingError{Table: table, Object: table}
	}
	m := a.db.Migrator()
	if !m.HasTable(model) {
		return &domain.SchemaMissingError{Table: table, Object: table}
	}
	for _, col := range columns {
		if !m.HasColumn(model, col) {
			return &domain.SchemaMissingError{Table: table, Object: col}
		}
	}
	return nil
}

// ExistingKeys reads the persisted composite keys of a table. Numeric key
// columns are rendered as their decimal text, matching domain.Row identity
// keys.
func (a *SQLiteAdapter) ExistingKeys(ctx context.Context, table string, keyColumns []string) (map[string]struct{}, error) {
	rows, err := a.db.WithContext(ctx).
		Table(table).
		Select(strings.Join(keyColumns, ", ")).
		Rows()
	if err != nil {
		return nil, fmt.Errorf("reading keys of %s: %w", table, err)
	}
	defer rows.Close()

	keys := map[string]struct{}{}
	parts := make([]sql.NullString, len(keyColumns))
	dest := make([]any, len(keyColumns))
	for i := range parts {
		dest[i] = &parts[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning keys of %s: %w", table, err)
		}
		strs := make([]string, len(parts))
		for i, p := range parts {
			strs[i] = p.String
		}
		keys[strings.Join(strs, "|")] = struct{}{}
	}
	return keys, rows.Err()
}

// InsertRows appends a slice of rows inside one transaction.
func (a *SQLiteAdapter) InsertRows(ctx context.Context, table string, rows any) error {
	if reflect.ValueOf(rows).Len() == 0 {
		return nil
	}
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(table).CreateInBatches(rows, 200).Error
	})
}

func (a *SQLiteAdapter) VendorIndex(ctx context.Context) (map[string]domain.Vendor, error) {
	vendors, err := a.Vendors(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[string]domain.Vendor, len(vendors))
	for _, v := range vendors {
		index[strings.ToLower(strings.TrimSpace(v.VendorName))] = v
	}
	return index, nil
}

func (a *SQLiteAdapter) ProductIndex(ctx context.Context) (map[domain.ProductKey]domain.Product, error) {
	vendors, err := a.Vendors(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(vendors))
	for _, v := range vendors {
		names[v.VendorID] = strings.ToLower(strings.TrimSpace(v.VendorName))
	}

	products, err := a.Products(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[domain.ProductKey]domain.Product, len(products))
	for _, p := range products {
		key := domain.ProductKey{
			Vendor:  names[p.VendorID],
			Product: strings.ToLower(strings.TrimSpace(p.ProductName)),
		}
		index[key] = p
	}
	return index, nil
}

func (a *SQLiteAdapter) SourceIndex(ctx context.Context) (map[string]int64, error) {
	var sources []domain.CvssSource
	if err := a.db.WithContext(ctx).Find(&sources).Error; err != nil {
		return nil, err
	}
	index := make(map[string]int64, len(sources))
	for _, s := range sources {
		index[s.SourceName] = s.SourceID
	}
	return index, nil
}

// RefreshDimensionAggregates recomputes vendor and product counts and date
// bounds from the bridge joined with dim_cve. COALESCE keeps the seeded
// bounds when a dimension row has no referencing CVEs yet.
func (a *SQLiteAdapter) RefreshDimensionAggregates(ctx context.Context) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`
			UPDATE dim_products SET
				total_cves = (
					SELECT COUNT(DISTINCT b.cve_id) FROM bridge_cve_products b
					WHERE b.product_id = dim_products.product_id
				),
				first_cve_date = COALESCE((
					SELECT MIN(c.published_date) FROM bridge_cve_products b
					JOIN dim_cve c ON c.cve_id = b.cve_id
					WHERE b.product_id = dim_products.product_id
				), first_cve_date),
				last_cve_date = COALESCE((
					SELECT MAX(c.published_date) FROM bridge_cve_products b
					JOIN dim_cve c ON c.cve_id = b.cve_id
					WHERE b.product_id = dim_products.product_id
				), last_cve_date)
		`).Error; err != nil {
			return fmt.Errorf("refreshing product aggregates: %w", err)
		}

		if err := tx.Exec(`
			UPDATE dim_vendor SET
				total_products = (
					SELECT COUNT(*) FROM dim_products p
					WHERE p.vendor_id = dim_vendor.vendor_id
				),
				total_cves = (
					SELECT COUNT(DISTINCT b.cve_id) FROM bridge_cve_products b
					JOIN dim_products p ON p.product_id = b.product_id
					WHERE p.vendor_id = dim_vendor.vendor_id
				),
				first_cve_date = COALESCE((
					SELECT MIN(c.published_date) FROM bridge_cve_products b
					JOIN dim_products p ON p.product_id = b.product_id
					JOIN dim_cve c ON c.cve_id = b.cve_id
					WHERE p.vendor_id = dim_vendor.vendor_id
				), first_cve_date),
				last_cve_date = COALESCE((
					SELECT MAX(c.published_date) FROM bridge_cve_products b
					JOIN dim_products p ON p.product_id = b.product_id
					JOIN dim_cve c ON c.cve_id = b.cve_id
					WHERE p.vendor_id = dim_vendor.vendor_id
				), last_cve_date)
		`).Error; err != nil {
			return fmt.Errorf("refreshing vendor aggregates: %w", err)
		}
		return nil
	})
}

// ResetTable deletes every row of a known table. Unknown names are rejected
// rather than interpolated into SQL.
func (a *SQLiteAdapter) ResetTable(ctx context.Context, table string) error {
	if _, ok := models[table]; !ok {
		return fmt.Errorf("reset of unknown table %q", table)
	}
	return a.db.WithContext(ctx).Exec("DELETE FROM " + table).Error
}

func (a *SQLiteAdapter) Cves(ctx context.Context) ([]domain.DimCve, error) {
	var out []domain.DimCve
	return out, a.db.WithContext(ctx).Find(&out).Error
}

func (a *SQLiteAdapter) Vendors(ctx context.Context) ([]domain.Vendor, error) {
	var out []domain.Vendor
	return out, a.db.WithContext(ctx).Find(&out).Error
}

func (a *SQLiteAdapter) Products(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	return out, a.db.WithContext(ctx).Find(&out).Error
}

func (a *SQLiteAdapter) Bridge(ctx context.Context) ([]domain.BridgeCveProduct, error) {
	var out []domain.BridgeCveProduct
	return out, a.db.WithContext(ctx).Find(&out).Error
}

// Observations unions the three fact tables into the version-agnostic view
// the analytics layer consumes.
func (a *SQLiteAdapter) Observations(ctx context.Context) ([]domain.ScoreObservation, error) {
	var out []domain.ScoreObservation
	err := a.db.WithContext(ctx).Raw(`
		SELECT cve_id, 'CVSS 2.0' AS version, source_id, cvss_score AS score,
		       cvss_severity AS severity,
		       cvss_exploitability_score AS exploitability_score,
		       cvss_impact_score AS impact_score
		FROM cvss_v2
		UNION ALL
		SELECT cve_id, cvss_version AS version, source_id, cvss_score AS score,
		       cvss_severity AS severity,
		       cvss_exploitability_score AS exploitability_score,
		       cvss_impact_score AS impact_score
		FROM cvss_v3
		UNION ALL
		SELECT cve_id, 'CVSS 4.0' AS version, source_id, cvss_score AS score,
		       cvss_severity AS severity,
		       NULL AS exploitability_score,
		       NULL AS impact_score
		FROM cvss_v4
	`).Scan(&out).Error
	return out, err
}

func (a *SQLiteAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure interface compliance
var (
	_ ports.Warehouse       = (*SQLiteAdapter)(nil)
	_ ports.AnalyticsReader = (*SQLiteAdapter)(nil)
)
