package warehouse

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
	"github.com/lcalzada-xor/cvemart/internal/core/services/analytics"
	"github.com/lcalzada-xor/cvemart/internal/core/services/pipeline"
)

func sampleRecord() domain.RawCveRecord {
	return domain.RawCveRecord{
		CveID:           "CVE-2024-0001",
		Title:           "Buffer overflow in widget parser",
		Description:     "A crafted payload overflows the widget parser.",
		Category:        "Overflow",
		PublishedDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		LastModified:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		RemotelyExploit: true,
		CvssScores: []domain.CvssEntry{
			{
				Version:             "CVSS 3.1",
				Score:               "9.8",
				Severity:            "CRITICAL",
				Vector:              "CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H",
				ExploitabilityScore: "3.9",
				ImpactScore:         "5.9",
				Source:              "nvd@nist.gov",
			},
		},
		AffectedProducts: []domain.AffectedProduct{
			{Vendor: "Acme", Product: "Widget"},
		},
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.New(adapter, log)

	report, err := orch.Run(ctx, []domain.RawCveRecord{sampleRecord()})
	require.NoError(t, err)
	require.False(t, report.Failed)

	for _, table := range []string{
		domain.TableDimSource, domain.TableDimCve, domain.TableDimVendor,
		domain.TableDimProducts, domain.TableCvssV3, domain.TableBridge,
	} {
		rep := report.Tables[table]
		assert.Equal(t, 1, rep.Inserted, table)
		assert.Equal(t, domain.LoadInserted, rep.State, table)
	}
	assert.Equal(t, 0, report.Tables[domain.TableCvssV2].Processed)
	assert.Equal(t, 0, report.Tables[domain.TableCvssV4].Processed)

	// Decoded vector components must be persisted as full words.
	var fact domain.CvssFactV3
	require.NoError(t, adapter.db.First(&fact).Error)
	assert.Equal(t, "CVE-2024-0001", fact.CveID)
	assert.Equal(t, "CVSS 3.1", fact.CvssVersion)
	assert.Equal(t, "Network", fact.BaseAV)
	assert.Equal(t, "Low", fact.BaseAC)
	assert.Equal(t, "None", fact.BasePR)
	assert.Equal(t, "Unchanged", fact.BaseS)
	assert.Equal(t, "High", fact.BaseC)
	require.NotNil(t, fact.CvssScore)
	assert.InDelta(t, 9.8, *fact.CvssScore, 1e-9)
	assert.NotZero(t, fact.SourceID)

	// Aggregates are recomputed as part of the run.
	vendors, err := adapter.Vendors(ctx)
	require.NoError(t, err)
	require.Len(t, vendors, 1)
	assert.Equal(t, "Acme", vendors[0].VendorName)
	assert.Equal(t, 1, vendors[0].TotalProducts)
	assert.Equal(t, 1, vendors[0].TotalCves)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), vendors[0].FirstCveDate.UTC())
}

func TestPipelineReplayIsIdempotent(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.New(adapter, log)

	_, err := orch.Run(ctx, []domain.RawCveRecord{sampleRecord()})
	require.NoError(t, err)

	report, err := orch.Run(ctx, []domain.RawCveRecord{sampleRecord()})
	require.NoError(t, err)
	for _, table := range []string{
		domain.TableDimSource, domain.TableDimCve, domain.TableDimVendor,
		domain.TableDimProducts, domain.TableCvssV3, domain.TableBridge,
	} {
		rep := report.Tables[table]
		assert.Equal(t, 0, rep.Inserted, table)
		assert.Equal(t, 1, rep.Skipped, table)
		assert.Equal(t, domain.LoadInserted, rep.State, table)
	}

	var count int64
	require.NoError(t, adapter.db.Table(domain.TableCvssV3).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestPipelineMergesVendorCasingAcrossRuns(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.New(adapter, log)

	first := sampleRecord()
	first.AffectedProducts = []domain.AffectedProduct{{Vendor: "Acme Corp", Product: "Widget"}}
	_, err := orch.Run(ctx, []domain.RawCveRecord{first})
	require.NoError(t, err)

	second := sampleRecord()
	second.CveID = "CVE-2024-0002"
	second.PublishedDate = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	second.AffectedProducts = []domain.AffectedProduct{
		{Vendor: "acme corp", Product: "widget"},
		{Vendor: "ACME CORP", Product: "Gadget"},
	}
	report, err := orch.Run(ctx, []domain.RawCveRecord{second})
	require.NoError(t, err)

	// The second run resolves the vendor against the persisted row and only
	// inserts the genuinely new product.
	assert.Zero(t, report.Tables[domain.TableDimVendor].Inserted)
	assert.Equal(t, 1, report.Tables[domain.TableDimVendor].Skipped)
	assert.Equal(t, 1, report.Tables[domain.TableDimProducts].Inserted)
	assert.Equal(t, 1, report.Tables[domain.TableDimProducts].Skipped)

	vendors, err := adapter.Vendors(ctx)
	require.NoError(t, err)
	require.Len(t, vendors, 1, "casing variants merge into one vendor row")
	assert.Equal(t, "Acme Corp", vendors[0].VendorName, "first-seen casing wins")
	assert.Equal(t, 2, vendors[0].TotalProducts)
	assert.Equal(t, 2, vendors[0].TotalCves, "union of distinct CVEs, not occurrence sum")
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), vendors[0].FirstCveDate.UTC())
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), vendors[0].LastCveDate.UTC())

	products, err := adapter.Products(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, products[0].VendorID, products[1].VendorID)

	bridge, err := adapter.Bridge(ctx)
	require.NoError(t, err)
	assert.Len(t, bridge, 3)
}

func TestPipelineThenAnalyticsRebuild(t *testing.T) {
	adapter := openTestAdapter(t)
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := pipeline.New(adapter, log).Run(ctx, []domain.RawCveRecord{sampleRecord()})
	require.NoError(t, err)

	summary, err := analytics.NewService(adapter, adapter, log).Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CveSummaries)
	assert.Equal(t, 1, summary.VendorMetrics)
	assert.Equal(t, 1, summary.ProductRisks)
	assert.Equal(t, 1, summary.VersionComparisons)

	var best domain.CveSummary
	require.NoError(t, adapter.db.First(&best).Error)
	assert.Equal(t, "CVE-2024-0001", best.CveID)
	assert.Equal(t, "CVSS 3.1", best.CvssVersion)
	require.NotNil(t, best.CvssScore)
	assert.InDelta(t, 9.8, *best.CvssScore, 1e-9)
	assert.True(t, best.IsCritical)
	// 0.6*9.8 + 0.3*3.9 + 0.1*10 = 8.05
	assert.InDelta(t, 8.05, best.RiskScore, 1e-9)
}
