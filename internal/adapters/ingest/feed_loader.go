package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
	"github.com/lcalzada-xor/cvemart/internal/core/ports"
)

// FeedLoader stages scraped CVE feed files into the bronze store.
type FeedLoader struct {
	store ports.BronzeStore
}

// NewFeedLoader creates a new feed loader.
func NewFeedLoader(store ports.BronzeStore) *FeedLoader {
	return &FeedLoader{store: store}
}

// feedRecord is the wire shape of one scraped record. The nested lists are
// kept raw because the scraping layer sometimes emits them as sentinel
// strings ("null", "[]", "nan") or as JSON encoded inside a string.
type feedRecord struct {
	domain.RawCveRecord
	CvssScores       json.RawMessage `json:"cvss_scores"`
	AffectedProducts json.RawMessage `json:"affected_products"`
}

// decodeList decodes a nested feed list, treating sentinel strings as empty
// and re-parsing string-wrapped JSON. Anything unparsable decodes to nil.
func decodeList[T any](raw json.RawMessage) []T {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil
		}
		inner = strings.TrimSpace(inner)
		switch strings.ToLower(inner) {
		case "", "null", "none", "nan", "[]":
			return nil
		}
		raw = json.RawMessage(inner)
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// LoadFromFile stages records from one JSON feed file.
func (l *FeedLoader) LoadFromFile(ctx context.Context, filepath string) (int, error) {
	log.Printf("[CVE-FEED] Loading records from %s", filepath)

	data, err := os.ReadFile(filepath)
	if err != nil {
		return 0, fmt.Errorf("failed to read feed file: %w", err)
	}

	var rows []feedRecord
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("failed to parse feed file: %w", err)
	}

	records := make([]domain.RawCveRecord, 0, len(rows))
	for _, row := range rows {
		rec := row.RawCveRecord
		rec.CvssScores = decodeList[domain.CvssEntry](row.CvssScores)
		rec.AffectedProducts = decodeList[domain.AffectedProduct](row.AffectedProducts)
		records = append(records, rec)
	}

	stored, err := l.store.StoreBatch(ctx, records)
	if err != nil {
		return stored, fmt.Errorf("failed to stage records: %w", err)
	}

	log.Printf("[CVE-FEED] Staged %d/%d records", stored, len(records))
	return stored, nil
}

// LoadFromMultipleFiles stages records from multiple feed files, continuing
// past files that fail.
func (l *FeedLoader) LoadFromMultipleFiles(ctx context.Context, filepaths []string) (int, error) {
	total := 0
	failed := 0

	for _, filepath := range filepaths {
		stored, err := l.LoadFromFile(ctx, filepath)
		if err != nil {
			log.Printf("[CVE-FEED] Failed to load %s: %v", filepath, err)
			failed++
			continue
		}
		total += stored
	}

	log.Printf("[CVE-FEED] Staged %d records from %d/%d files", total, len(filepaths)-failed, len(filepaths))
	return total, nil
}
