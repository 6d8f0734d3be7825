// Package facts turns raw scraped CVE records into normalized fact rows and
// dimension candidates. Building is deterministic and single-pass: cross-CVE
// deduplication belongs to the dimension resolver and the loader.
package facts

import (
	"strconv"
	"strings"
	"time"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
	"github.com/lcalzada-xor/cvemart/internal/core/services/cvss"
)

const (
	maxCveIDLen  = 20
	maxSourceLen = 100

	defaultTitle    = "Unknown"
	defaultCategory = "undefined"
	unknownSource   = "unknown"
)

// Builder converts RawCveRecords into loadable rows.
type Builder struct {
	// Now supplies timestamp fallbacks for records missing dates.
	Now func() time.Time
}

// NewBuilder returns a Builder using wall-clock time for fallbacks.
func NewBuilder() *Builder {
	return &Builder{Now: time.Now}
}

// Result holds everything built from one record, with first-class drop
// counters instead of log side effects.
type Result struct {
	Cve        domain.DimCve
	FactsV2    []domain.CvssFactV2
	FactsV3    []domain.CvssFactV3
	FactsV4    []domain.CvssFactV4
	Candidates []domain.ProductCandidate

	DroppedNoVersion int // entries with an unparseable or absent version tag
	DroppedNoVector  int // entries with an empty vector (NOT NULL downstream)
	MalformedVectors int // non-empty vectors yielding no metric pairs
}

// Batch accumulates results over a whole input batch.
type Batch struct {
	Cves       []domain.DimCve
	FactsV2    []domain.CvssFactV2
	FactsV3    []domain.CvssFactV3
	FactsV4    []domain.CvssFactV4
	Candidates []domain.ProductCandidate

	DroppedNoVersion int
	DroppedNoVector  int
	MalformedVectors int
}

// BuildBatch runs BuildRecord over all records and accumulates the outputs.
func (b *Builder) BuildBatch(records []domain.RawCveRecord) Batch {
	var batch Batch
	for _, rec := range records {
		res := b.BuildRecord(rec)
		if res.Cve.CveID == "" {
			continue
		}
		batch.Cves = append(batch.Cves, res.Cve)
		batch.FactsV2 = append(batch.FactsV2, res.FactsV2...)
		batch.FactsV3 = append(batch.FactsV3, res.FactsV3...)
		batch.FactsV4 = append(batch.FactsV4, res.FactsV4...)
		batch.Candidates = append(batch.Candidates, res.Candidates...)
		batch.DroppedNoVersion += res.DroppedNoVersion
		batch.DroppedNoVector += res.DroppedNoVector
		batch.MalformedVectors += res.MalformedVectors
	}
	return batch
}

// BuildRecord produces the dim_cve row, per-version fact rows and
// vendor/product candidates for one record. A record without a CVE id yields
// a zero Result.
func (b *Builder) BuildRecord(rec domain.RawCveRecord) Result {
	var res Result

	cveID := truncate(normText(rec.CveID), maxCveIDLen)
	if cveID == "" {
		return res
	}

	res.Cve = b.buildDimCve(cveID, rec)

	for _, entry := range rec.CvssScores {
		b.buildFact(cveID, entry, &res)
	}

	for _, prod := range rec.AffectedProducts {
		vendor := normText(prod.Vendor)
		product := normText(prod.Product)
		if vendor == "" || product == "" {
			continue
		}
		res.Candidates = append(res.Candidates, domain.ProductCandidate{
			Vendor:    vendor,
			Product:   product,
			CveID:     cveID,
			Published: res.Cve.PublishedDate,
		})
	}

	return res
}

func (b *Builder) buildDimCve(cveID string, rec domain.RawCveRecord) domain.DimCve {
	now := b.Now().UTC()

	published := rec.PublishedDate
	if published.IsZero() {
		published = now
	}
	lastModified := rec.LastModified
	if lastModified.IsZero() {
		lastModified = published
	}
	loadedAt := rec.LoadedAt
	if loadedAt.IsZero() {
		loadedAt = now
	}

	title := normText(rec.Title)
	if title == "" {
		title = defaultTitle
	}
	category := normText(rec.Category)
	if category == "" {
		category = defaultCategory
	}

	return domain.DimCve{
		CveID:            cveID,
		Title:            title,
		Description:      normText(rec.Description),
		Category:         category,
		PublishedDate:    published,
		LastModified:     lastModified,
		LoadedAt:         loadedAt,
		RemotelyExploit:  rec.RemotelyExploit,
		SourceIdentifier: normText(rec.SourceIdentifier),
	}
}

func (b *Builder) buildFact(cveID string, entry domain.CvssEntry, res *Result) {
	key, label, ok := cvss.VersionInfo(normText(entry.Version))
	if !ok {
		res.DroppedNoVersion++
		return
	}

	vector := normText(entry.Vector)
	if vector == "" {
		res.DroppedNoVector++
		return
	}

	metrics := cvss.ParseVector(vector, key)
	if len(metrics) == 0 {
		res.MalformedVectors++
	}

	source := truncate(normText(entry.Source), maxSourceLen)
	if source == "" {
		source = unknownSource
	}

	score := parseFloat(entry.Score)
	severity := normText(entry.Severity)
	exploitability := parseFloat(entry.ExploitabilityScore)
	impact := parseFloat(entry.ImpactScore)

	switch key {
	case cvss.V2:
		res.FactsV2 = append(res.FactsV2, domain.CvssFactV2{
			CveID:               cveID,
			Source:              source,
			CvssScore:           score,
			CvssSeverity:        severity,
			CvssVector:          vector,
			AV:                  metrics["AV"],
			AC:                  metrics["AC"],
			Au:                  metrics["Au"],
			C:                   metrics["C"],
			I:                   metrics["I"],
			A:                   metrics["A"],
			ExploitabilityScore: exploitability,
			ImpactScore:         impact,
		})
	case cvss.V3:
		res.FactsV3 = append(res.FactsV3, domain.CvssFactV3{
			CveID:               cveID,
			Source:              source,
			CvssVersion:         label,
			CvssScore:           score,
			CvssSeverity:        severity,
			CvssVector:          vector,
			BaseAV:              metrics["AV"],
			BaseAC:              metrics["AC"],
			BasePR:              metrics["PR"],
			BaseUI:              metrics["UI"],
			BaseS:               metrics["S"],
			BaseC:               metrics["C"],
			BaseI:               metrics["I"],
			BaseA:               metrics["A"],
			ExploitabilityScore: exploitability,
			ImpactScore:         impact,
		})
	case cvss.V4:
		res.FactsV4 = append(res.FactsV4, domain.CvssFactV4{
			CveID:        cveID,
			Source:       source,
			CvssScore:    score,
			CvssSeverity: severity,
			CvssVector:   vector,
			AV:           metrics["AV"],
			AT:           metrics["AT"],
			AC:           metrics["AC"],
			VC:           metrics["VC"],
			VI:           metrics["VI"],
			VA:           metrics["VA"],
			SC:           metrics["SC"],
			SI:           metrics["SI"],
			SA:           metrics["SA"],
		})
	}
}

// normText trims whitespace including non-breaking space. Scraped fields use
// NBSP padding often enough that plain TrimSpace is not sufficient.
func normText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// parseFloat coerces scraped numeric text. Non-numeric text is a missing
// value, not an error.
func parseFloat(s string) *float64 {
	s = normText(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
