package warehouse

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
)

func openTestAdapter(t *testing.T) *SQLiteAdapter {
	t.Helper()
	adapter, err := NewSQLiteAdapter(filepath.Join(t.TempDir(), "warehouse.db"))
	require.NoError(t, err)
	require.NoError(t, adapter.Migrate())
	t.Cleanup(func() { adapter.Close() })
	return adapter
}

func fp(v float64) *float64 { return &v }

func TestVerifyTable(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	err := adapter.VerifyTable(ctx, domain.TableCvssV3,
		[]string{"cve_id", "source_id", "cvss_vector", "cvss_v3_base_av"})
	assert.NoError(t, err)

	err = adapter.VerifyTable(ctx, "no_such_table", nil)
	var missing *domain.SchemaMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "no_such_table", missing.Table)

	err = adapter.VerifyTable(ctx, domain.TableCvssV3, []string{"no_such_column"})
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "no_such_column", missing.Object)
}

func TestInsertRowsAndExistingKeys(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	rows := []domain.BridgeCveProduct{
		{CveID: "CVE-2024-0001", ProductID: 1},
		{CveID: "CVE-2024-0001", ProductID: 2},
	}
	require.NoError(t, adapter.InsertRows(ctx, domain.TableBridge, rows))

	keys, err := adapter.ExistingKeys(ctx, domain.TableBridge, []string{"cve_id", "product_id"})
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.Contains(t, keys, "CVE-2024-0001|1")
	assert.Contains(t, keys, "CVE-2024-0001|2")
}

func TestInsertRowsEmptySlice(t *testing.T) {
	adapter := openTestAdapter(t)
	assert.NoError(t, adapter.InsertRows(context.Background(), domain.TableBridge, []domain.BridgeCveProduct{}))
}

func TestFactKeysIncludeVector(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	fact := domain.CvssFactV3{
		CveID:       "CVE-2024-0002",
		SourceID:    3,
		CvssVersion: "CVSS 3.1",
		CvssScore:   fp(9.8),
		CvssVector:  "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
		BaseAV:      "Network",
	}
	require.NoError(t, adapter.InsertRows(ctx, domain.TableCvssV3, []domain.CvssFactV3{fact}))

	keys, err := adapter.ExistingKeys(ctx, domain.TableCvssV3,
		[]string{"cve_id", "source_id", "cvss_vector"})
	require.NoError(t, err)
	assert.Contains(t, keys, fact.IdentityKey())
}

func TestDimensionIndexes(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.InsertRows(ctx, domain.TableDimVendor,
		[]domain.Vendor{{VendorID: 1, VendorName: "Acme Corp"}}))
	require.NoError(t, adapter.InsertRows(ctx, domain.TableDimProducts,
		[]domain.Product{{ProductID: 1, VendorID: 1, ProductName: "Acme Server"}}))
	require.NoError(t, adapter.InsertRows(ctx, domain.TableDimSource,
		[]domain.CvssSource{{SourceID: 1, SourceName: "nvd@nist.gov"}}))

	vendors, err := adapter.VendorIndex(ctx)
	require.NoError(t, err)
	require.Contains(t, vendors, "acme corp")
	assert.Equal(t, int64(1), vendors["acme corp"].VendorID)

	products, err := adapter.ProductIndex(ctx)
	require.NoError(t, err)
	key := domain.ProductKey{Vendor: "acme corp", Product: "acme server"}
	require.Contains(t, products, key)
	assert.Equal(t, int64(1), products[key].ProductID)

	sources, err := adapter.SourceIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sources["nvd@nist.gov"])
}

func TestRefreshDimensionAggregates(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	early := time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, adapter.InsertRows(ctx, domain.TableDimCve, []domain.DimCve{
		{CveID: "CVE-2023-0001", PublishedDate: early},
		{CveID: "CVE-2024-0003", PublishedDate: late},
	}))
	require.NoError(t, adapter.InsertRows(ctx, domain.TableDimVendor,
		[]domain.Vendor{{VendorID: 1, VendorName: "Acme"}}))
	require.NoError(t, adapter.InsertRows(ctx, domain.TableDimProducts, []domain.Product{
		{ProductID: 1, VendorID: 1, ProductName: "Server"},
		{ProductID: 2, VendorID: 1, ProductName: "Agent"},
	}))
	require.NoError(t, adapter.InsertRows(ctx, domain.TableBridge, []domain.BridgeCveProduct{
		{CveID: "CVE-2023-0001", ProductID: 1},
		{CveID: "CVE-2024-0003", ProductID: 1},
		{CveID: "CVE-2024-0003", ProductID: 2},
	}))

	require.NoError(t, adapter.RefreshDimensionAggregates(ctx))

	vendors, err := adapter.Vendors(ctx)
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, 2, vendors[0].TotalProducts)
	assert.Equal(t, 2, vendors[0].TotalCves)
	assert.Equal(t, early, vendors[0].FirstCveDate.UTC())
	assert.Equal(t, late, vendors[0].LastCveDate.UTC())

	products, err := adapter.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	for _, p := range products {
		switch p.ProductID {
		case 1:
			assert.Equal(t, 2, p.TotalCves)
			assert.Equal(t, early, p.FirstCveDate.UTC())
		case 2:
			assert.Equal(t, 1, p.TotalCves)
			assert.Equal(t, late, p.FirstCveDate.UTC())
		}
	}

	// A second refresh over the same rows is a fixpoint.
	require.NoError(t, adapter.RefreshDimensionAggregates(ctx))
	vendors, err = adapter.Vendors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, vendors[0].TotalCves)
}

func TestObservationsUnion(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.InsertRows(ctx, domain.TableCvssV2, []domain.CvssFactV2{
		{CveID: "CVE-2024-0004", SourceID: 1, CvssScore: fp(6.8), CvssVector: "AV:N/AC:M"},
	}))
	require.NoError(t, adapter.InsertRows(ctx, domain.TableCvssV3, []domain.CvssFactV3{
		{CveID: "CVE-2024-0004", SourceID: 1, CvssVersion: "CVSS 3.1", CvssScore: fp(8.8),
			CvssVector: "CVSS:3.1/AV:N", ExploitabilityScore: fp(3.9)},
	}))
	require.NoError(t, adapter.InsertRows(ctx, domain.TableCvssV4, []domain.CvssFactV4{
		{CveID: "CVE-2024-0004", SourceID: 2, CvssScore: fp(9.3), CvssVector: "CVSS:4.0/AV:N"},
	}))

	obs, err := adapter.Observations(ctx)
	require.NoError(t, err)
	require.Len(t, obs, 3)

	byVersion := map[string]domain.ScoreObservation{}
	for _, o := range obs {
		byVersion[o.Version] = o
	}
	require.Contains(t, byVersion, "CVSS 2.0")
	require.Contains(t, byVersion, "CVSS 3.1")
	require.Contains(t, byVersion, "CVSS 4.0")
	assert.Equal(t, 8.8, *byVersion["CVSS 3.1"].Score)
	assert.Equal(t, 3.9, *byVersion["CVSS 3.1"].ExploitabilityScore)
	assert.Nil(t, byVersion["CVSS 4.0"].ExploitabilityScore)
	assert.Equal(t, int64(2), byVersion["CVSS 4.0"].SourceID)
}

func TestResetTable(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, adapter.InsertRows(ctx, domain.TableGoldCveSummary,
		[]domain.CveSummary{{CveID: "CVE-2024-0005"}}))
	require.NoError(t, adapter.ResetTable(ctx, domain.TableGoldCveSummary))

	keys, err := adapter.ExistingKeys(ctx, domain.TableGoldCveSummary, []string{"cve_id"})
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.Error(t, adapter.ResetTable(ctx, "users; DROP TABLE dim_cve"))
}
