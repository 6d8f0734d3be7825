package reporting

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
)

// PDFExporter exports warehouse reports to PDF format
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportExecutiveReport generates a professional PDF from an executive report
func (e *PDFExporter) ExportExecutiveReport(report *domain.ExecutiveReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, report)
	e.addRiskScore(pdf, report)
	e.addStatistics(pdf, report)
	e.addTopRisks(pdf, report)
	e.addTopVendors(pdf, report)
	e.addFooter(pdf)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// addHeader adds the report header
func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, report *domain.ExecutiveReport) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102) // Dark blue
	pdf.CellFormat(0, 15, "Vulnerability Warehouse Summary", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	dateStr := fmt.Sprintf("Generated: %s", report.GeneratedAt.Format("2006-01-02 15:04"))
	pdf.CellFormat(0, 6, dateStr, "", 1, "L", false, 0, "")
	pdf.Ln(8)
}

// addRiskScore adds the prominent risk score display
func (e *PDFExporter) addRiskScore(pdf *gofpdf.Fpdf, report *domain.ExecutiveReport) {
	r, g, b := e.getRiskColor(report.AvgRiskScore)

	pdf.SetFillColor(r, g, b)
	pdf.Rect(20, pdf.GetY(), 170, 30, "F")

	y := pdf.GetY()

	pdf.SetFont("Arial", "B", 36)
	pdf.SetTextColor(255, 255, 255) // White
	pdf.SetXY(25, y+5)
	scoreStr := fmt.Sprintf("%.1f/10", report.AvgRiskScore)
	pdf.CellFormat(80, 20, scoreStr, "", 0, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 18)
	pdf.SetXY(110, y+8)
	levelStr := fmt.Sprintf("%s Risk", report.RiskLevel)
	pdf.CellFormat(80, 14, levelStr, "", 0, "L", false, 0, "")

	pdf.SetY(y + 35)
	pdf.Ln(5)
}

// getRiskColor returns RGB color based on risk score
func (e *PDFExporter) getRiskColor(score float64) (r, g, b int) {
	switch {
	case score >= 7.0:
		return 220, 53, 69 // Red (Critical)
	case score >= 5.0:
		return 255, 149, 0 // Orange (High)
	case score >= 3.0:
		return 255, 204, 0 // Yellow (Medium)
	default:
		return 52, 199, 89 // Green (Low)
	}
}

// addStatistics adds warehouse statistics
func (e *PDFExporter) addStatistics(pdf *gofpdf.Fpdf, report *domain.ExecutiveReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Warehouse Overview", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(60, 60, 60)

	stats := []struct {
		label string
		value string
	}{
		{"Total CVEs", fmt.Sprintf("%d", report.TotalCves)},
		{"Critical CVEs", fmt.Sprintf("%d", report.CriticalCves)},
		{"Remotely Exploitable", fmt.Sprintf("%d", report.RemoteCves)},
		{"Vendors Tracked", fmt.Sprintf("%d", report.TotalVendors)},
		{"Products Tracked", fmt.Sprintf("%d", report.TotalProducts)},
	}

	for _, stat := range stats {
		pdf.CellFormat(60, 7, stat.label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 7, stat.value, "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 11)
	}
	pdf.Ln(6)
}

// addTopRisks adds the highest-risk CVEs table
func (e *PDFExporter) addTopRisks(pdf *gofpdf.Fpdf, report *domain.ExecutiveReport) {
	if len(report.TopRisks) == 0 {
		return
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Top Risks", "", 1, "L", false, 0, "")
	pdf.Ln(1)

	// Table header
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(0, 51, 102)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(40, 8, "CVE", "1", 0, "L", true, 0, "")
	pdf.CellFormat(80, 8, "Title", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 8, "Severity", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 8, "Risk", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(60, 60, 60)
	for _, risk := range report.TopRisks {
		title := risk.Title
		if len(title) > 48 {
			title = title[:45] + "..."
		}
		pdf.CellFormat(40, 7, risk.CveID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(80, 7, title, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, risk.CvssSeverity, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.2f", risk.RiskScore), "1", 1, "C", false, 0, "")
	}
	pdf.Ln(6)
}

// addTopVendors adds the riskiest vendors table
func (e *PDFExporter) addTopVendors(pdf *gofpdf.Fpdf, report *domain.ExecutiveReport) {
	if len(report.TopVendors) == 0 {
		return
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Vendor Exposure", "", 1, "L", false, 0, "")
	pdf.Ln(1)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(0, 51, 102)
	pdf.SetTextColor(255, 255, 255)
	pdf.CellFormat(70, 8, "Vendor", "1", 0, "L", true, 0, "")
	pdf.CellFormat(35, 8, "Products", "1", 0, "C", true, 0, "")
	pdf.CellFormat(35, 8, "Vulnerabilities", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 8, "Risk", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	pdf.SetTextColor(60, 60, 60)
	for _, vendor := range report.TopVendors {
		pdf.CellFormat(70, 7, vendor.VendorName, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%d", vendor.TotalProducts), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, fmt.Sprintf("%d", vendor.TotalVulnerabilities), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", vendor.VendorRiskScore), "1", 1, "C", false, 0, "")
	}
	pdf.Ln(6)
}

// addFooter adds the report footer
func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf) {
	pdf.SetY(-20)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.CellFormat(0, 10, "cvemart vulnerability warehouse", "", 0, "C", false, 0, "")
}
