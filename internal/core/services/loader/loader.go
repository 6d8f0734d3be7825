// Package loader implements append-only incremental loading. A load never
// updates or deletes: it verifies the target schema, diffs incoming identity
// keys against persisted ones and inserts only the difference, so replaying
// a batch is a no-op.
package loader

import (
	"context"
	"fmt"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
	"github.com/lcalzada-xor/cvemart/internal/core/ports"
)

// Result is the outcome of one table load.
type Result struct {
	Table     string
	Processed int
	Inserted  int
	Skipped   int
	State     domain.LoadState
}

func (r Result) Report() domain.TableReport {
	return domain.TableReport{
		Table:     r.Table,
		Processed: r.Processed,
		Inserted:  r.Inserted,
		Skipped:   r.Skipped,
		State:     r.State,
	}
}

// Append loads rows into table through store. Columns are the schema
// precondition, keyColumns the identity-key columns in the order the rows'
// IdentityKey joins them. Within a batch the first occurrence of a key wins;
// keys already persisted are skipped. On error the Result carries the last
// state reached.
func Append[R domain.Row](ctx context.Context, store ports.TableStore, table string, columns, keyColumns []string, rows []R) (Result, error) {
	res := Result{Table: table, Processed: len(rows), State: domain.LoadUnvalidated}

	if err := store.VerifyTable(ctx, table, columns); err != nil {
		return res, fmt.Errorf("verifying %s: %w", table, err)
	}
	res.State = domain.LoadSchemaVerified

	existing, err := store.ExistingKeys(ctx, table, keyColumns)
	if err != nil {
		return res, fmt.Errorf("resolving keys for %s: %w", table, err)
	}
	res.State = domain.LoadKeysResolved

	seen := make(map[string]struct{}, len(rows))
	fresh := make([]R, 0, len(rows))
	for _, row := range rows {
		key := row.IdentityKey()
		if _, ok := existing[key]; ok {
			res.Skipped++
			continue
		}
		if _, ok := seen[key]; ok {
			res.Skipped++
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, row)
	}
	res.State = domain.LoadRowsFiltered

	if len(fresh) > 0 {
		if err := store.InsertRows(ctx, table, fresh); err != nil {
			return res, &domain.PersistenceError{Table: table, Err: err}
		}
	}
	res.Inserted = len(fresh)
	res.State = domain.LoadInserted
	return res, nil
}
