package reporting

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
)

func fp(v float64) *float64 { return &v }

func sampleReport() *domain.ExecutiveReport {
	return &domain.ExecutiveReport{
		GeneratedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		TotalCves:     120,
		TotalVendors:  14,
		TotalProducts: 37,
		CriticalCves:  23,
		RemoteCves:    41,
		AvgRiskScore:  5.4,
		RiskLevel:     "HIGH",
		TopRisks: []domain.CveSummary{
			{
				CveID:        "CVE-2024-0001",
				Title:        "Remote code execution in acme server",
				CvssSeverity: "CRITICAL",
				CvssScore:    fp(9.8),
				RiskScore:    8.05,
			},
			{
				CveID:        "CVE-2024-0002",
				Title:        "A very long vulnerability title that will not fit in a single table cell at all",
				CvssSeverity: "HIGH",
				RiskScore:    7.1,
			},
		},
		TopVendors: []domain.VendorMetrics{
			{VendorName: "Acme Corp", TotalProducts: 5, TotalVulnerabilities: 40, VendorRiskScore: 6.2},
		},
	}
}

func TestExportExecutiveReport(t *testing.T) {
	data, err := NewPDFExporter().ExportExecutiveReport(sampleReport())
	require.NoError(t, err)

	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")), "output must be a PDF document")
	assert.Greater(t, len(data), 1000, "document should carry real content")
}

func TestExportExecutiveReportEmpty(t *testing.T) {
	report := &domain.ExecutiveReport{GeneratedAt: time.Now(), RiskLevel: "LOW"}

	data, err := NewPDFExporter().ExportExecutiveReport(report)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestRiskColorBands(t *testing.T) {
	e := NewPDFExporter()

	r, _, _ := e.getRiskColor(9.0)
	assert.Equal(t, 220, r, "critical scores render red")

	_, g, _ := e.getRiskColor(1.0)
	assert.Equal(t, 199, g, "low scores render green")
}
