// Package ingest implements the bronze staging area on plain SQLite. Raw
// records are stored as JSON payloads exactly as scraped, append-only, and
// read back newest-per-CVE.
package ingest

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
	"github.com/lcalzada-xor/cvemart/internal/core/ports"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteRepository implements ports.BronzeStore using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the staging database and initializes its schema.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// StoreBatch appends raw records. Records without a CVE id are skipped; the
// returned count is the number of rows written.
func (r *SQLiteRepository) StoreBatch(ctx context.Context, records []domain.RawCveRecord) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO bronze_cve_raw (cve_id, payload) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	stored := 0
	for _, rec := range records {
		if rec.CveID == "" {
			continue
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return stored, fmt.Errorf("failed to encode %s: %w", rec.CveID, err)
		}
		if _, err := stmt.ExecContext(ctx, rec.CveID, payload); err != nil {
			return stored, fmt.Errorf("failed to store %s: %w", rec.CveID, err)
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return stored, nil
}

// PendingBatch returns the newest stored payload per CVE, oldest first.
func (r *SQLiteRepository) PendingBatch(ctx context.Context) ([]domain.RawCveRecord, error) {
	query := `
		SELECT payload FROM bronze_cve_raw
		WHERE id IN (SELECT MAX(id) FROM bronze_cve_raw GROUP BY cve_id)
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []domain.RawCveRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		var rec domain.RawCveRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode payload: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the total number of staged rows, including superseded ones.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bronze_cve_raw").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return count, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Ensure interface compliance
var _ ports.BronzeStore = (*SQLiteRepository)(nil)
