package domain

import "time"

// LoadState tracks how far a table load progressed. States advance strictly
// in order; a load that fails reports the last state it reached.
type LoadState string

const (
	LoadUnvalidated    LoadState = "UNVALIDATED"
	LoadSchemaVerified LoadState = "SCHEMA_VERIFIED"
	LoadKeysResolved   LoadState = "KEYS_RESOLVED"
	LoadRowsFiltered   LoadState = "ROWS_FILTERED"
	LoadInserted       LoadState = "INSERTED"
)

// TableReport holds the per-table outcome of one pipeline run.
type TableReport struct {
	Table     string    `json:"table"`
	Processed int       `json:"processed"`
	Inserted  int       `json:"inserted"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
	State     LoadState `json:"state"`
	Error     string    `json:"error,omitempty"`
}

// RunReport is the user-visible result of one full pipeline pass.
type RunReport struct {
	RunID            string                 `json:"run_id"`
	StartedAt        time.Time              `json:"started_at"`
	Duration         time.Duration          `json:"duration"`
	RecordsIn        int                    `json:"records_in"`
	DroppedNoVersion int                    `json:"dropped_no_version"`
	DroppedNoVector  int                    `json:"dropped_no_vector"`
	MalformedVectors int                    `json:"malformed_vectors"`
	Tables           map[string]TableReport `json:"tables"`
	Failed           bool                   `json:"failed"`
	FailedTable      string                 `json:"failed_table,omitempty"`
}

// TableOrder is the strict load order: dimensions fully committed before the
// facts and bridge that reference them.
var TableOrder = []string{
	TableDimSource,
	TableDimCve,
	TableDimVendor,
	TableDimProducts,
	TableCvssV2,
	TableCvssV3,
	TableCvssV4,
	TableBridge,
}
