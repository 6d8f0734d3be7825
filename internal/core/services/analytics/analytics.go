// Package analytics rebuilds the gold tables from the star schema. Unlike
// the star tables these are derived entirely from persisted rows, so every
// pass resets and recomputes them instead of appending.
package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
	"github.com/lcalzada-xor/cvemart/internal/core/ports"
)

// versionPriority orders CVSS versions newest first when picking the score
// that represents a CVE.
var versionPriority = map[string]int{
	"CVSS 4.0": 4,
	"CVSS 3.1": 3,
	"CVSS 3.0": 2,
	"CVSS 2.0": 1,
}

// Service computes the gold layer out of one warehouse.
type Service struct {
	reader ports.AnalyticsReader
	store  ports.Warehouse
	log    *slog.Logger
}

func NewService(reader ports.AnalyticsReader, store ports.Warehouse, log *slog.Logger) *Service {
	return &Service{reader: reader, store: store, log: log}
}

// Summary reports row counts of one rebuild.
type Summary struct {
	CveSummaries       int
	VendorMetrics      int
	ProductRisks       int
	VersionComparisons int
}

// Rebuild recomputes all gold tables. Each table is reset and rewritten; a
// failure leaves earlier tables rebuilt and later ones untouched.
func (s *Service) Rebuild(ctx context.Context) (Summary, error) {
	var sum Summary

	cves, err := s.reader.Cves(ctx)
	if err != nil {
		return sum, fmt.Errorf("reading dim_cve: %w", err)
	}
	vendors, err := s.reader.Vendors(ctx)
	if err != nil {
		return sum, fmt.Errorf("reading dim_vendor: %w", err)
	}
	products, err := s.reader.Products(ctx)
	if err != nil {
		return sum, fmt.Errorf("reading dim_products: %w", err)
	}
	bridge, err := s.reader.Bridge(ctx)
	if err != nil {
		return sum, fmt.Errorf("reading bridge: %w", err)
	}
	observations, err := s.reader.Observations(ctx)
	if err != nil {
		return sum, fmt.Errorf("reading cvss facts: %w", err)
	}

	summaries := BuildCveSummaries(cves, bridge, observations)
	comparisons := BuildVersionComparisons(observations)
	productRisks := BuildProductRisks(vendors, products, bridge, cves, observations)
	vendorMetrics := BuildVendorMetrics(vendors, products, bridge, cves, summaries)

	if err := s.rewrite(ctx, domain.TableGoldCveSummary, summaries); err != nil {
		return sum, err
	}
	sum.CveSummaries = len(summaries)
	if err := s.rewrite(ctx, domain.TableGoldComparison, comparisons); err != nil {
		return sum, err
	}
	sum.VersionComparisons = len(comparisons)
	if err := s.rewrite(ctx, domain.TableGoldProductRisk, productRisks); err != nil {
		return sum, err
	}
	sum.ProductRisks = len(productRisks)
	if err := s.rewrite(ctx, domain.TableGoldVendorMetrics, vendorMetrics); err != nil {
		return sum, err
	}
	sum.VendorMetrics = len(vendorMetrics)

	s.log.Info("gold layer rebuilt",
		"cve_summaries", sum.CveSummaries,
		"vendor_metrics", sum.VendorMetrics,
		"product_risks", sum.ProductRisks,
		"version_comparisons", sum.VersionComparisons,
	)
	return sum, nil
}

func (s *Service) rewrite(ctx context.Context, table string, rows any) error {
	if err := s.store.ResetTable(ctx, table); err != nil {
		return fmt.Errorf("resetting %s: %w", table, err)
	}
	if err := s.store.InsertRows(ctx, table, rows); err != nil {
		return &domain.PersistenceError{Table: table, Err: err}
	}
	return nil
}

// ExecutiveReport condenses the warehouse into the headline view the PDF
// exporter renders. limit caps the top-risk lists.
func (s *Service) ExecutiveReport(ctx context.Context, limit int) (domain.ExecutiveReport, error) {
	var report domain.ExecutiveReport

	cves, err := s.reader.Cves(ctx)
	if err != nil {
		return report, fmt.Errorf("reading dim_cve: %w", err)
	}
	vendors, err := s.reader.Vendors(ctx)
	if err != nil {
		return report, fmt.Errorf("reading dim_vendor: %w", err)
	}
	products, err := s.reader.Products(ctx)
	if err != nil {
		return report, fmt.Errorf("reading dim_products: %w", err)
	}
	bridge, err := s.reader.Bridge(ctx)
	if err != nil {
		return report, fmt.Errorf("reading bridge: %w", err)
	}
	observations, err := s.reader.Observations(ctx)
	if err != nil {
		return report, fmt.Errorf("reading cvss facts: %w", err)
	}

	summaries := BuildCveSummaries(cves, bridge, observations)
	vendorMetrics := BuildVendorMetrics(vendors, products, bridge, cves, summaries)

	report.GeneratedAt = time.Now()
	report.TotalCves = len(cves)
	report.TotalVendors = len(vendors)
	report.TotalProducts = len(products)

	var riskSum float64
	for _, summary := range summaries {
		riskSum += summary.RiskScore
		if summary.IsCritical {
			report.CriticalCves++
		}
		if summary.RemotelyExploit {
			report.RemoteCves++
		}
	}
	if len(summaries) > 0 {
		report.AvgRiskScore = round2(riskSum / float64(len(summaries)))
	}
	report.RiskLevel = riskCategory(report.AvgRiskScore)

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].RiskScore != summaries[j].RiskScore {
			return summaries[i].RiskScore > summaries[j].RiskScore
		}
		return deref(summaries[i].CvssScore) > deref(summaries[j].CvssScore)
	})
	report.TopRisks = truncateSummaries(summaries, limit)

	sort.Slice(vendorMetrics, func(i, j int) bool {
		return vendorMetrics[i].VendorRiskScore > vendorMetrics[j].VendorRiskScore
	})
	if limit < len(vendorMetrics) {
		vendorMetrics = vendorMetrics[:limit]
	}
	report.TopVendors = vendorMetrics

	return report, nil
}

func truncateSummaries(summaries []domain.CveSummary, limit int) []domain.CveSummary {
	if limit < len(summaries) {
		return summaries[:limit]
	}
	return summaries
}

// BuildCveSummaries produces one row per CVE carrying its representative
// score: highest CVSS version first, highest score within the version.
func BuildCveSummaries(cves []domain.DimCve, bridge []domain.BridgeCveProduct, observations []domain.ScoreObservation) []domain.CveSummary {
	best := make(map[string]domain.ScoreObservation, len(cves))
	sources := make(map[string]map[int64]struct{})
	for _, obs := range observations {
		if cur, ok := best[obs.CveID]; !ok || observationLess(cur, obs) {
			best[obs.CveID] = obs
		}
		if sources[obs.CveID] == nil {
			sources[obs.CveID] = map[int64]struct{}{}
		}
		sources[obs.CveID][obs.SourceID] = struct{}{}
	}

	productCounts := make(map[string]int, len(bridge))
	for _, b := range bridge {
		productCounts[b.CveID]++
	}

	out := make([]domain.CveSummary, 0, len(cves))
	for _, cve := range cves {
		row := domain.CveSummary{
			CveID:                 cve.CveID,
			Title:                 cve.Title,
			Category:              cve.Category,
			PublishedDate:         cve.PublishedDate,
			CveYear:               cve.PublishedDate.Year(),
			RemotelyExploit:       cve.RemotelyExploit,
			AffectedProductsCount: productCounts[cve.CveID],
			CvssSourcesCount:      len(sources[cve.CveID]),
		}
		if obs, ok := best[cve.CveID]; ok {
			row.CvssVersion = obs.Version
			row.CvssScore = obs.Score
			row.CvssSeverity = obs.Severity
			row.ExploitabilityScore = obs.ExploitabilityScore
			row.ImpactScore = obs.ImpactScore
		}
		row.RiskScore = round2(0.6*deref(row.CvssScore) +
			0.3*deref(row.ExploitabilityScore) +
			0.1*10*boolFloat(row.RemotelyExploit))
		row.IsCritical = row.CvssSeverity == "CRITICAL" || row.CvssSeverity == "HIGH" ||
			deref(row.CvssScore) >= 7.0 || row.RemotelyExploit
		out = append(out, row)
	}
	return out
}

// BuildVersionComparisons pivots per-CVE scores by version: the highest score
// of each version, plus spread statistics across versions.
func BuildVersionComparisons(observations []domain.ScoreObservation) []domain.VersionComparison {
	type pivot struct {
		byVersion map[string]float64
		sources   map[int64]struct{}
	}
	pivots := map[string]*pivot{}
	var order []string
	for _, obs := range observations {
		p, ok := pivots[obs.CveID]
		if !ok {
			p = &pivot{byVersion: map[string]float64{}, sources: map[int64]struct{}{}}
			pivots[obs.CveID] = p
			order = append(order, obs.CveID)
		}
		p.sources[obs.SourceID] = struct{}{}
		if obs.Score == nil {
			continue
		}
		if cur, ok := p.byVersion[obs.Version]; !ok || *obs.Score > cur {
			p.byVersion[obs.Version] = *obs.Score
		}
	}

	out := make([]domain.VersionComparison, 0, len(order))
	for _, cveID := range order {
		p := pivots[cveID]
		row := domain.VersionComparison{
			CveID:           cveID,
			VersionsCount:   len(p.byVersion),
			SourceDiversity: len(p.sources),
		}
		var scores []float64
		pick := func(version string) *float64 {
			score, ok := p.byVersion[version]
			if !ok {
				return nil
			}
			scores = append(scores, score)
			return &score
		}
		row.ScoreCvss20 = pick("CVSS 2.0")
		row.ScoreCvss30 = pick("CVSS 3.0")
		row.ScoreCvss31 = pick("CVSS 3.1")
		row.ScoreCvss40 = pick("CVSS 4.0")

		if len(scores) > 0 {
			minScore, maxScore := scores[0], scores[0]
			for _, s := range scores[1:] {
				minScore = math.Min(minScore, s)
				maxScore = math.Max(maxScore, s)
			}
			row.ScoreRange = round2(maxScore - minScore)
		}
		row.ScoreVariance = round2(sampleVariance(scores))
		row.IsConsistent = row.ScoreVariance < 1.0 || row.ScoreRange < 2.0
		out = append(out, row)
	}
	return out
}

// BuildProductRisks aggregates per-product vulnerability metrics. Density is
// vulnerabilities per year of the product's observed vulnerability span.
func BuildProductRisks(vendors []domain.Vendor, products []domain.Product, bridge []domain.BridgeCveProduct, cves []domain.DimCve, observations []domain.ScoreObservation) []domain.ProductRisk {
	vendorNames := vendorNameIndex(vendors)
	cveIndex := make(map[string]domain.DimCve, len(cves))
	for _, c := range cves {
		cveIndex[c.CveID] = c
	}
	best := bestObservations(observations)

	cvesByProduct := map[int64][]string{}
	for _, b := range bridge {
		cvesByProduct[b.ProductID] = append(cvesByProduct[b.ProductID], b.CveID)
	}

	out := make([]domain.ProductRisk, 0, len(products))
	for _, product := range products {
		row := domain.ProductRisk{
			ProductID:   product.ProductID,
			VendorName:  vendorNames[product.VendorID],
			ProductName: product.ProductName,
		}

		var scoreSum, exploitSum float64
		var scored, exploitScored int
		for _, cveID := range cvesByProduct[product.ProductID] {
			row.TotalVulnerabilities++
			if cve, ok := cveIndex[cveID]; ok {
				if cve.RemotelyExploit {
					row.RemoteExploitableCount++
				}
				growBounds(&row.FirstVulnerability, &row.LastVulnerability, cve.PublishedDate)
			}
			obs, ok := best[cveID]
			if !ok {
				continue
			}
			if obs.Score != nil {
				scoreSum += *obs.Score
				scored++
				row.MaxCvssScore = math.Max(row.MaxCvssScore, *obs.Score)
			}
			if obs.ExploitabilityScore != nil {
				exploitSum += *obs.ExploitabilityScore
				exploitScored++
			}
		}
		if scored > 0 {
			row.AvgCvssScore = round2(scoreSum / float64(scored))
		}
		var avgExploit float64
		if exploitScored > 0 {
			avgExploit = exploitSum / float64(exploitScored)
		}

		density := vulnerabilityDensity(row.TotalVulnerabilities, row.FirstVulnerability, row.LastVulnerability)
		remoteRatio := ratio(row.RemoteExploitableCount, row.TotalVulnerabilities)
		row.ProductRiskScore = round2(0.4*row.AvgCvssScore + 0.3*avgExploit +
			0.2*density + 0.1*10*remoteRatio)
		row.RiskCategory = riskCategory(row.ProductRiskScore)
		out = append(out, row)
	}
	return out
}

// BuildVendorMetrics aggregates per-vendor metrics over the products and
// summaries, ranking vendors densely by risk score.
func BuildVendorMetrics(vendors []domain.Vendor, products []domain.Product, bridge []domain.BridgeCveProduct, cves []domain.DimCve, summaries []domain.CveSummary) []domain.VendorMetrics {
	vendorByProduct := make(map[int64]int64, len(products))
	productTotals := map[int64]int{}
	for _, p := range products {
		vendorByProduct[p.ProductID] = p.VendorID
		productTotals[p.VendorID]++
	}
	summaryIndex := make(map[string]domain.CveSummary, len(summaries))
	for _, s := range summaries {
		summaryIndex[s.CveID] = s
	}

	type acc struct {
		vulns    int
		remote   int
		scoreSum float64
		scored   int
		maxScore float64
	}
	accs := map[int64]*acc{}
	for _, b := range bridge {
		vendorID, ok := vendorByProduct[b.ProductID]
		if !ok {
			continue
		}
		a := accs[vendorID]
		if a == nil {
			a = &acc{}
			accs[vendorID] = a
		}
		a.vulns++
		summary, ok := summaryIndex[b.CveID]
		if !ok {
			continue
		}
		if summary.RemotelyExploit {
			a.remote++
		}
		if summary.CvssScore != nil {
			a.scoreSum += *summary.CvssScore
			a.scored++
			a.maxScore = math.Max(a.maxScore, *summary.CvssScore)
		}
	}

	out := make([]domain.VendorMetrics, 0, len(vendors))
	for _, vendor := range vendors {
		a := accs[vendor.VendorID]
		if a == nil {
			a = &acc{}
		}
		row := domain.VendorMetrics{
			VendorName:             vendor.VendorName,
			TotalProducts:          productTotals[vendor.VendorID],
			TotalVulnerabilities:   a.vulns,
			MaxCvssScore:           a.maxScore,
			RemoteExploitableCount: a.remote,
		}
		if a.scored > 0 {
			row.AvgCvssScore = round2(a.scoreSum / float64(a.scored))
		}
		if row.TotalProducts > 0 {
			row.VulnerabilitiesPerProd = round2(float64(a.vulns) / float64(row.TotalProducts))
		}
		remoteRatio := ratio(a.remote, a.vulns)
		row.VendorRiskScore = round2(0.5*row.AvgCvssScore +
			0.3*row.VulnerabilitiesPerProd + 0.2*10*remoteRatio)
		out = append(out, row)
	}

	rankVendors(out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalVulnerabilities != out[j].TotalVulnerabilities {
			return out[i].TotalVulnerabilities > out[j].TotalVulnerabilities
		}
		return out[i].VendorName < out[j].VendorName
	})
	return out
}

// rankVendors assigns dense ranks by descending risk score: equal scores
// share a rank and the next distinct score takes the following rank.
func rankVendors(metrics []domain.VendorMetrics) {
	scores := make([]float64, 0, len(metrics))
	for _, m := range metrics {
		scores = append(scores, m.VendorRiskScore)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(scores)))

	rankByScore := map[float64]int{}
	rank := 0
	for _, score := range scores {
		if _, ok := rankByScore[score]; !ok {
			rank++
			rankByScore[score] = rank
		}
	}
	for i := range metrics {
		metrics[i].RiskRank = rankByScore[metrics[i].VendorRiskScore]
	}
}

func bestObservations(observations []domain.ScoreObservation) map[string]domain.ScoreObservation {
	best := map[string]domain.ScoreObservation{}
	for _, obs := range observations {
		if cur, ok := best[obs.CveID]; !ok || observationLess(cur, obs) {
			best[obs.CveID] = obs
		}
	}
	return best
}

func observationLess(a, b domain.ScoreObservation) bool {
	pa, pb := versionPriority[a.Version], versionPriority[b.Version]
	if pa != pb {
		return pa < pb
	}
	return deref(a.Score) < deref(b.Score)
}

func vendorNameIndex(vendors []domain.Vendor) map[int64]string {
	names := make(map[int64]string, len(vendors))
	for _, v := range vendors {
		names[v.VendorID] = v.VendorName
	}
	return names
}

func vulnerabilityDensity(vulns int, first, last time.Time) float64 {
	if vulns == 0 || first.IsZero() || last.IsZero() {
		return 0
	}
	// Spans under a year are floored to one so short-lived products still
	// register their full vulnerability count as density.
	years := last.Sub(first).Hours() / (24 * 365)
	if years < 1 {
		years = 1
	}
	return round2(float64(vulns) / years)
}

func riskCategory(score float64) string {
	switch {
	case score > 7:
		return "CRITICAL"
	case score > 5:
		return "HIGH"
	case score > 3:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// sampleVariance matches the spread statistic of the comparison table:
// variance with n-1 denominator, zero below two samples.
func sampleVariance(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return ss / float64(len(xs)-1)
}

func growBounds(first, last *time.Time, t time.Time) {
	if t.IsZero() {
		return
	}
	if first.IsZero() || t.Before(*first) {
		*first = t
	}
	if last.IsZero() || t.After(*last) {
		*last = t
	}
}

func ratio(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
