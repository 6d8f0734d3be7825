package domain

import (
	"fmt"
	"time"
)

// Warehouse table names. The tables are external preconditions: the schema is
// owned by the orchestrator, the pipeline only verifies and appends.
const (
	TableDimCve      = "dim_cve"
	TableDimVendor   = "dim_vendor"
	TableDimProducts = "dim_products"
	TableDimSource   = "dim_cvss_source"
	TableCvssV2      = "cvss_v2"
	TableCvssV3      = "cvss_v3"
	TableCvssV4      = "cvss_v4"
	TableBridge      = "bridge_cve_products"
)

// Row is a loadable warehouse row. IdentityKey returns the composite string
// key used for append-only dedup; it must match the key the store derives
// from the same columns on persisted rows.
type Row interface {
	IdentityKey() string
}

// DimCve is one row of dim_cve.
type DimCve struct {
	CveID            string    `json:"cve_id" gorm:"column:cve_id;primaryKey"`
	Title            string    `json:"title" gorm:"column:title"`
	Description      string    `json:"description" gorm:"column:description"`
	Category         string    `json:"category" gorm:"column:category"`
	PublishedDate    time.Time `json:"published_date" gorm:"column:published_date"`
	LastModified     time.Time `json:"last_modified" gorm:"column:last_modified"`
	LoadedAt         time.Time `json:"loaded_at" gorm:"column:loaded_at"`
	RemotelyExploit  bool      `json:"remotely_exploit" gorm:"column:remotely_exploit"`
	SourceIdentifier string    `json:"source_identifier" gorm:"column:source_identifier"`
}

func (DimCve) TableName() string { return TableDimCve }

func (c DimCve) IdentityKey() string { return c.CveID }

// Vendor is one row of dim_vendor. Identity is the lowercased trimmed vendor
// name; the stored casing is whatever was seen first. Aggregate columns are
// recomputed by union over referencing rows, never decremented.
type Vendor struct {
	VendorID      int64     `json:"vendor_id" gorm:"column:vendor_id;primaryKey"`
	VendorName    string    `json:"vendor_name" gorm:"column:vendor_name"`
	TotalProducts int       `json:"total_products" gorm:"column:total_products"`
	TotalCves     int       `json:"total_cves" gorm:"column:total_cves"`
	FirstCveDate  time.Time `json:"first_cve_date" gorm:"column:first_cve_date"`
	LastCveDate   time.Time `json:"last_cve_date" gorm:"column:last_cve_date"`
}

func (Vendor) TableName() string { return TableDimVendor }

func (v Vendor) IdentityKey() string { return fmt.Sprintf("%d", v.VendorID) }

// Product is one row of dim_products. Identity is (vendor, lowercased trimmed
// product name).
type Product struct {
	ProductID    int64     `json:"product_id" gorm:"column:product_id;primaryKey"`
	VendorID     int64     `json:"vendor_id" gorm:"column:vendor_id"`
	ProductName  string    `json:"product_name" gorm:"column:product_name"`
	TotalCves    int       `json:"total_cves" gorm:"column:total_cves"`
	FirstCveDate time.Time `json:"first_cve_date" gorm:"column:first_cve_date"`
	LastCveDate  time.Time `json:"last_cve_date" gorm:"column:last_cve_date"`
}

func (Product) TableName() string { return TableDimProducts }

func (p Product) IdentityKey() string { return fmt.Sprintf("%d", p.ProductID) }

// CvssSource is the reference dimension deduplicating reporting-organization
// strings. Names are case-sensitive after trimming, at most 100 characters.
type CvssSource struct {
	SourceID   int64  `json:"source_id" gorm:"column:source_id;primaryKey"`
	SourceName string `json:"source_name" gorm:"column:source_name"`
}

func (CvssSource) TableName() string { return TableDimSource }

func (s CvssSource) IdentityKey() string { return s.SourceName }

// BridgeCveProduct is one CVE-to-product association. Duplicates of the pair
// are silently ignored.
type BridgeCveProduct struct {
	CveID     string `json:"cve_id" gorm:"column:cve_id"`
	ProductID int64  `json:"product_id" gorm:"column:product_id"`
}

func (BridgeCveProduct) TableName() string { return TableBridge }

func (b BridgeCveProduct) IdentityKey() string {
	return fmt.Sprintf("%s|%d", b.CveID, b.ProductID)
}

// CvssFactV2 is one row of cvss_v2. Source is the raw reporting-source name
// carried until the source dimension resolves it to SourceID; it is never
// persisted.
type CvssFactV2 struct {
	CveID               string   `json:"cve_id" gorm:"column:cve_id"`
	Source              string   `json:"-" gorm:"-"`
	SourceID            int64    `json:"source_id" gorm:"column:source_id"`
	CvssScore           *float64 `json:"cvss_score" gorm:"column:cvss_score"`
	CvssSeverity        string   `json:"cvss_severity" gorm:"column:cvss_severity"`
	CvssVector          string   `json:"cvss_vector" gorm:"column:cvss_vector"`
	AV                  string   `json:"cvss_v2_av" gorm:"column:cvss_v2_av"`
	AC                  string   `json:"cvss_v2_ac" gorm:"column:cvss_v2_ac"`
	Au                  string   `json:"cvss_v2_au" gorm:"column:cvss_v2_au"`
	C                   string   `json:"cvss_v2_c" gorm:"column:cvss_v2_c"`
	I                   string   `json:"cvss_v2_i" gorm:"column:cvss_v2_i"`
	A                   string   `json:"cvss_v2_a" gorm:"column:cvss_v2_a"`
	ExploitabilityScore *float64 `json:"cvss_exploitability_score" gorm:"column:cvss_exploitability_score"`
	ImpactScore         *float64 `json:"cvss_impact_score" gorm:"column:cvss_impact_score"`
}

func (CvssFactV2) TableName() string { return TableCvssV2 }

func (f CvssFactV2) IdentityKey() string {
	return fmt.Sprintf("%s|%d|%s", f.CveID, f.SourceID, f.CvssVector)
}

// CvssFactV3 is one row of cvss_v3, covering both CVSS 3.0 and 3.1; the exact
// version label is kept as a column.
type CvssFactV3 struct {
	CveID               string   `json:"cve_id" gorm:"column:cve_id"`
	Source              string   `json:"-" gorm:"-"`
	SourceID            int64    `json:"source_id" gorm:"column:source_id"`
	CvssVersion         string   `json:"cvss_version" gorm:"column:cvss_version"`
	CvssScore           *float64 `json:"cvss_score" gorm:"column:cvss_score"`
	CvssSeverity        string   `json:"cvss_severity" gorm:"column:cvss_severity"`
	CvssVector          string   `json:"cvss_vector" gorm:"column:cvss_vector"`
	BaseAV              string   `json:"cvss_v3_base_av" gorm:"column:cvss_v3_base_av"`
	BaseAC              string   `json:"cvss_v3_base_ac" gorm:"column:cvss_v3_base_ac"`
	BasePR              string   `json:"cvss_v3_base_pr" gorm:"column:cvss_v3_base_pr"`
	BaseUI              string   `json:"cvss_v3_base_ui" gorm:"column:cvss_v3_base_ui"`
	BaseS               string   `json:"cvss_v3_base_s" gorm:"column:cvss_v3_base_s"`
	BaseC               string   `json:"cvss_v3_base_c" gorm:"column:cvss_v3_base_c"`
	BaseI               string   `json:"cvss_v3_base_i" gorm:"column:cvss_v3_base_i"`
	BaseA               string   `json:"cvss_v3_base_a" gorm:"column:cvss_v3_base_a"`
	ExploitabilityScore *float64 `json:"cvss_exploitability_score" gorm:"column:cvss_exploitability_score"`
	ImpactScore         *float64 `json:"cvss_impact_score" gorm:"column:cvss_impact_score"`
}

func (CvssFactV3) TableName() string { return TableCvssV3 }

func (f CvssFactV3) IdentityKey() string {
	return fmt.Sprintf("%s|%d|%s", f.CveID, f.SourceID, f.CvssVector)
}

// CvssFactV4 is one row of cvss_v4.
type CvssFactV4 struct {
	CveID        string   `json:"cve_id" gorm:"column:cve_id"`
	Source       string   `json:"-" gorm:"-"`
	SourceID     int64    `json:"source_id" gorm:"column:source_id"`
	CvssScore    *float64 `json:"cvss_score" gorm:"column:cvss_score"`
	CvssSeverity string   `json:"cvss_severity" gorm:"column:cvss_severity"`
	CvssVector   string   `json:"cvss_vector" gorm:"column:cvss_vector"`
	AV           string   `json:"cvss_v4_av" gorm:"column:cvss_v4_av"`
	AT           string   `json:"cvss_v4_at" gorm:"column:cvss_v4_at"`
	AC           string   `json:"cvss_v4_ac" gorm:"column:cvss_v4_ac"`
	VC           string   `json:"cvss_v4_vc" gorm:"column:cvss_v4_vc"`
	VI           string   `json:"cvss_v4_vi" gorm:"column:cvss_v4_vi"`
	VA           string   `json:"cvss_v4_va" gorm:"column:cvss_v4_va"`
	SC           string   `json:"cvss_v4_sc" gorm:"column:cvss_v4_sc"`
	SI           string   `json:"cvss_v4_si" gorm:"column:cvss_v4_si"`
	SA           string   `json:"cvss_v4_sa" gorm:"column:cvss_v4_sa"`
}

func (CvssFactV4) TableName() string { return TableCvssV4 }

func (f CvssFactV4) IdentityKey() string {
	return fmt.Sprintf("%s|%d|%s", f.CveID, f.SourceID, f.CvssVector)
}

// ScoreObservation is a version-agnostic view over the three fact tables,
// used by the analytics layer.
type ScoreObservation struct {
	CveID               string
	Version             string
	SourceID            int64
	Score               *float64
	Severity            string
	ExploitabilityScore *float64
	ImpactScore         *float64
}
