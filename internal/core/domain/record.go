package domain

import "time"

// RawCveRecord is one vulnerability exactly as handed over by the scraping
// layer: scalar fields plus the nested CVSS and affected-product lists,
// already JSON-decoded. Records are immutable once created; a re-scrape
// produces a new record, it never mutates an old one.
type RawCveRecord struct {
	CveID            string            `json:"cve_id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Category         string            `json:"category"`
	PublishedDate    time.Time         `json:"published_date"`
	LastModified     time.Time         `json:"last_modified"`
	LoadedAt         time.Time         `json:"loaded_at"`
	RemotelyExploit  bool              `json:"remotely_exploit"`
	SourceIdentifier string            `json:"source_identifier"`
	CvssScores       []CvssEntry       `json:"cvss_scores"`
	AffectedProducts []AffectedProduct `json:"affected_products"`
}

// CvssEntry is one scored assessment of a CVE. Several entries may exist per
// CVE, potentially more than one per version when reporting sources disagree.
// Numeric fields arrive as scraped text and are coerced downstream.
type CvssEntry struct {
	Version             string `json:"version"` // "CVSS 2.0", "CVSS 3.0", "CVSS 3.1", "CVSS 4.0"
	Score               string `json:"score"`
	Severity            string `json:"severity"`
	Vector              string `json:"vector"`
	ExploitabilityScore string `json:"exploitability_score"`
	ImpactScore         string `json:"impact_score"`
	Source              string `json:"source"`
}

// AffectedProduct is one (vendor, product) pair listed for a CVE.
type AffectedProduct struct {
	Vendor  string `json:"vendor"`
	Product string `json:"product"`
}

// ProductCandidate is an affected-product occurrence extracted from one CVE,
// carrying the context the dimension resolver needs for aggregate bounds.
type ProductCandidate struct {
	Vendor    string
	Product   string
	CveID     string
	Published time.Time
}

// ProductKey identifies a product across batches: lowercased trimmed vendor
// and product names.
type ProductKey struct {
	Vendor  string
	Product string
}
