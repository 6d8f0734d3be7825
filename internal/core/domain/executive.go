package domain

import "time"

// ExecutiveReport is the condensed warehouse view rendered into the PDF
// summary: headline counts, the overall risk posture and the worst
// offenders.
type ExecutiveReport struct {
	GeneratedAt time.Time

	TotalCves     int
	TotalVendors  int
	TotalProducts int
	CriticalCves  int
	RemoteCves    int

	AvgRiskScore float64
	RiskLevel    string

	TopRisks   []CveSummary    // highest risk score first
	TopVendors []VendorMetrics // highest vendor risk first
}
