package domain

import "fmt"

// SchemaMissingError reports an absent table or column in the warehouse.
// It is fatal: the pipeline aborts before any writes.
type SchemaMissingError struct {
	Table  string
	Object string // missing table or column name
}

func (e *SchemaMissingError) Error() string {
	if e.Object == e.Table || e.Object == "" {
		return fmt.Sprintf("schema missing: table %q does not exist", e.Table)
	}
	return fmt.Sprintf("schema missing: table %q has no column %q", e.Table, e.Object)
}

// PersistenceError reports a rejected write. Tables committed earlier in the
// same run stay committed; the run is resumable at table granularity.
type PersistenceError struct {
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure on %s: %v", e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
