package domain

import "time"

// Gold analytic table names. Unlike the star-schema tables these are rebuilt
// on every analytics pass (explicit reset, then append).
const (
	TableGoldCveSummary    = "gold_cve_summary"
	TableGoldVendorMetrics = "gold_vendor_security_metrics"
	TableGoldProductRisk   = "gold_product_risk_profile"
	TableGoldComparison    = "gold_cvss_version_comparison"
)

// CveSummary is one row of gold_cve_summary: one CVE with its best known
// score (highest version first, then highest score) and derived risk fields.
type CveSummary struct {
	CveID                 string    `json:"cve_id" gorm:"column:cve_id"`
	Title                 string    `json:"title" gorm:"column:title"`
	Category              string    `json:"category" gorm:"column:category"`
	PublishedDate         time.Time `json:"published_date" gorm:"column:published_date"`
	CveYear               int       `json:"cve_year" gorm:"column:cve_year"`
	RemotelyExploit       bool      `json:"remotely_exploit" gorm:"column:remotely_exploit"`
	CvssVersion           string    `json:"cvss_version" gorm:"column:cvss_version"`
	CvssScore             *float64  `json:"cvss_score" gorm:"column:cvss_score"`
	CvssSeverity          string    `json:"cvss_severity" gorm:"column:cvss_severity"`
	ExploitabilityScore   *float64  `json:"cvss_exploitability_score" gorm:"column:cvss_exploitability_score"`
	ImpactScore           *float64  `json:"cvss_impact_score" gorm:"column:cvss_impact_score"`
	AffectedProductsCount int       `json:"affected_products_count" gorm:"column:affected_products_count"`
	CvssSourcesCount      int       `json:"cvss_sources_count" gorm:"column:cvss_sources_count"`
	RiskScore             float64   `json:"risk_score" gorm:"column:risk_score"`
	IsCritical            bool      `json:"is_critical" gorm:"column:is_critical"`
}

func (CveSummary) TableName() string { return TableGoldCveSummary }

func (s CveSummary) IdentityKey() string { return s.CveID }

// VendorMetrics is one row of gold_vendor_security_metrics.
type VendorMetrics struct {
	VendorName             string  `json:"vendor_name" gorm:"column:vendor_name"`
	TotalProducts          int     `json:"total_products" gorm:"column:total_products"`
	TotalVulnerabilities   int     `json:"total_vulnerabilities" gorm:"column:total_vulnerabilities"`
	AvgCvssScore           float64 `json:"avg_cvss_score" gorm:"column:avg_cvss_score"`
	MaxCvssScore           float64 `json:"max_cvss_score" gorm:"column:max_cvss_score"`
	RemoteExploitableCount int     `json:"remote_exploitable_count" gorm:"column:remote_exploitable_count"`
	VulnerabilitiesPerProd float64 `json:"vulnerabilities_per_product" gorm:"column:vulnerabilities_per_product"`
	VendorRiskScore        float64 `json:"vendor_risk_score" gorm:"column:vendor_risk_score"`
	RiskRank               int     `json:"risk_rank" gorm:"column:risk_rank"`
}

func (VendorMetrics) TableName() string { return TableGoldVendorMetrics }

func (m VendorMetrics) IdentityKey() string { return m.VendorName }

// ProductRisk is one row of gold_product_risk_profile.
type ProductRisk struct {
	ProductID              int64     `json:"product_id" gorm:"column:product_id"`
	VendorName             string    `json:"vendor_name" gorm:"column:vendor_name"`
	ProductName            string    `json:"product_name" gorm:"column:product_name"`
	TotalVulnerabilities   int       `json:"total_vulnerabilities" gorm:"column:total_vulnerabilities"`
	AvgCvssScore           float64   `json:"avg_cvss_score" gorm:"column:avg_cvss_score"`
	MaxCvssScore           float64   `json:"max_cvss_score" gorm:"column:max_cvss_score"`
	RemoteExploitableCount int       `json:"remote_exploitable_count" gorm:"column:remote_exploitable_count"`
	FirstVulnerability     time.Time `json:"first_vulnerability_date" gorm:"column:first_vulnerability_date"`
	LastVulnerability      time.Time `json:"last_vulnerability_date" gorm:"column:last_vulnerability_date"`
	ProductRiskScore       float64   `json:"product_risk_score" gorm:"column:product_risk_score"`
	RiskCategory           string    `json:"risk_category" gorm:"column:risk_category"`
}

func (ProductRisk) TableName() string { return TableGoldProductRisk }

func (p ProductRisk) IdentityKey() string { return p.VendorName + "|" + p.ProductName }

// VersionComparison is one row of gold_cvss_version_comparison: per-CVE score
// spread across CVSS versions.
type VersionComparison struct {
	CveID           string   `json:"cve_id" gorm:"column:cve_id"`
	ScoreCvss20     *float64 `json:"score_cvss_2_0" gorm:"column:score_cvss_2_0"`
	ScoreCvss30     *float64 `json:"score_cvss_3_0" gorm:"column:score_cvss_3_0"`
	ScoreCvss31     *float64 `json:"score_cvss_3_1" gorm:"column:score_cvss_3_1"`
	ScoreCvss40     *float64 `json:"score_cvss_4_0" gorm:"column:score_cvss_4_0"`
	ScoreRange      float64  `json:"score_range" gorm:"column:score_range"`
	ScoreVariance   float64  `json:"score_variance" gorm:"column:score_variance"`
	VersionsCount   int      `json:"versions_count" gorm:"column:versions_count"`
	SourceDiversity int      `json:"source_diversity" gorm:"column:source_diversity"`
	IsConsistent    bool     `json:"is_consistent" gorm:"column:is_consistent"`
}

func (VersionComparison) TableName() string { return TableGoldComparison }

func (c VersionComparison) IdentityKey() string { return c.CveID }
