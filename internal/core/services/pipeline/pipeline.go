// Package pipeline orchestrates one warehouse load pass: build fact rows
// from raw records, resolve dimension identities, then append table by table
// in strict order so dimensions are committed before anything references
// them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lcalzada-xor/cvemart/internal/core/domain"
	"github.com/lcalzada-xor/cvemart/internal/core/ports"
	"github.com/lcalzada-xor/cvemart/internal/core/services/dimensions"
	"github.com/lcalzada-xor/cvemart/internal/core/services/facts"
	"github.com/lcalzada-xor/cvemart/internal/core/services/loader"
	"github.com/lcalzada-xor/cvemart/internal/telemetry"
)

type tableSpec struct {
	columns []string
	keys    []string
}

var factKeyColumns = []string{"cve_id", "source_id", "cvss_vector"}

// tableSpecs declares, per table, the columns whose presence is a
// precondition and the identity-key columns used for the append diff.
var tableSpecs = map[string]tableSpec{
	domain.TableDimSource: {
		columns: []string{"source_id", "source_name"},
		keys:    []string{"source_name"},
	},
	domain.TableDimCve: {
		columns: []string{"cve_id", "title", "description", "category", "published_date",
			"last_modified", "loaded_at", "remotely_exploit", "source_identifier"},
		keys: []string{"cve_id"},
	},
	domain.TableDimVendor: {
		columns: []string{"vendor_id", "vendor_name", "total_products", "total_cves",
			"first_cve_date", "last_cve_date"},
		keys: []string{"vendor_id"},
	},
	domain.TableDimProducts: {
		columns: []string{"product_id", "vendor_id", "product_name", "total_cves",
			"first_cve_date", "last_cve_date"},
		keys: []string{"product_id"},
	},
	domain.TableCvssV2: {
		columns: []string{"cve_id", "source_id", "cvss_score", "cvss_severity", "cvss_vector",
			"cvss_v2_av", "cvss_v2_ac", "cvss_v2_au", "cvss_v2_c", "cvss_v2_i", "cvss_v2_a",
			"cvss_exploitability_score", "cvss_impact_score"},
		keys: factKeyColumns,
	},
	domain.TableCvssV3: {
		columns: []string{"cve_id", "source_id", "cvss_version", "cvss_score", "cvss_severity",
			"cvss_vector", "cvss_v3_base_av", "cvss_v3_base_ac", "cvss_v3_base_pr",
			"cvss_v3_base_ui", "cvss_v3_base_s", "cvss_v3_base_c", "cvss_v3_base_i",
			"cvss_v3_base_a", "cvss_exploitability_score", "cvss_impact_score"},
		keys: factKeyColumns,
	},
	domain.TableCvssV4: {
		columns: []string{"cve_id", "source_id", "cvss_score", "cvss_severity", "cvss_vector",
			"cvss_v4_av", "cvss_v4_at", "cvss_v4_ac", "cvss_v4_vc", "cvss_v4_vi", "cvss_v4_va",
			"cvss_v4_sc", "cvss_v4_si", "cvss_v4_sa"},
		keys: factKeyColumns,
	},
	domain.TableBridge: {
		columns: []string{"cve_id", "product_id"},
		keys:    []string{"cve_id", "product_id"},
	},
}

// Orchestrator runs load passes against one warehouse.
type Orchestrator struct {
	warehouse ports.Warehouse
	builder   *facts.Builder
	resolver  *dimensions.Resolver
	log       *slog.Logger
	tracer    trace.Tracer
}

func New(warehouse ports.Warehouse, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		warehouse: warehouse,
		builder:   facts.NewBuilder(),
		resolver:  dimensions.NewResolver(warehouse),
		log:       log,
		tracer:    otel.Tracer("cvemart/pipeline"),
	}
}

// Run loads one batch of raw records. The returned report is meaningful even
// on error: tables committed before the failure stay committed and are
// reported as inserted, the failing table carries the state it reached, and
// tables after it stay unvalidated.
func (o *Orchestrator) Run(ctx context.Context, records []domain.RawCveRecord) (domain.RunReport, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	started := time.Now()
	report := domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
		RecordsIn: len(records),
		Tables:    make(map[string]domain.TableReport, len(domain.TableOrder)),
	}
	for _, table := range domain.TableOrder {
		report.Tables[table] = domain.TableReport{Table: table, State: domain.LoadUnvalidated}
	}
	span.SetAttributes(
		attribute.String("run.id", report.RunID),
		attribute.Int("run.records_in", len(records)),
	)

	log := o.log.With("run_id", report.RunID)
	log.Info("pipeline run started", "records", len(records))

	err := o.run(ctx, log, records, &report)
	report.Duration = time.Since(started)

	outcome := "ok"
	if err != nil {
		outcome = "failed"
		span.RecordError(err)
		log.Error("pipeline run failed", "table", report.FailedTable, "error", err)
	} else {
		log.Info("pipeline run finished", "duration", report.Duration.String())
	}
	telemetry.PipelineRuns.WithLabelValues(outcome).Inc()
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, records []domain.RawCveRecord, report *domain.RunReport) error {
	// All target tables must exist before the first write.
	for _, table := range domain.TableOrder {
		if err := o.warehouse.VerifyTable(ctx, table, tableSpecs[table].columns); err != nil {
			report.Failed = true
			report.FailedTable = table
			rep := report.Tables[table]
			rep.Error = err.Error()
			report.Tables[table] = rep
			return fmt.Errorf("preflight: %w", err)
		}
	}

	batch := o.builder.BuildBatch(records)
	report.DroppedNoVersion = batch.DroppedNoVersion
	report.DroppedNoVector = batch.DroppedNoVector
	report.MalformedVectors = batch.MalformedVectors
	telemetry.VectorsDecoded.WithLabelValues("v2").Add(float64(len(batch.FactsV2)))
	telemetry.VectorsDecoded.WithLabelValues("v3").Add(float64(len(batch.FactsV3)))
	telemetry.VectorsDecoded.WithLabelValues("v4").Add(float64(len(batch.FactsV4)))
	telemetry.VectorsDropped.WithLabelValues("no_version").Add(float64(batch.DroppedNoVersion))
	telemetry.VectorsDropped.WithLabelValues("no_vector").Add(float64(batch.DroppedNoVector))
	telemetry.VectorsDropped.WithLabelValues("malformed").Add(float64(batch.MalformedVectors))

	sources, err := o.resolver.ResolveSources(ctx, sourceNames(&batch))
	if err != nil {
		report.Failed = true
		report.FailedTable = domain.TableDimSource
		return err
	}
	stampSourceIDs(&batch, sources.Index)

	products, err := o.resolver.ResolveProducts(ctx, batch.Candidates)
	if err != nil {
		report.Failed = true
		report.FailedTable = domain.TableDimVendor
		return err
	}

	if !load(ctx, o, log, report, domain.TableDimSource, sources.NewRows) {
		return loadErr(report)
	}
	foldResolved(report, domain.TableDimSource, sources.Existing)
	if !load(ctx, o, log, report, domain.TableDimCve, batch.Cves) {
		return loadErr(report)
	}
	if !load(ctx, o, log, report, domain.TableDimVendor, products.NewVendors) {
		return loadErr(report)
	}
	foldResolved(report, domain.TableDimVendor, products.ExistingVendors)
	if !load(ctx, o, log, report, domain.TableDimProducts, products.NewProducts) {
		return loadErr(report)
	}
	foldResolved(report, domain.TableDimProducts, products.ExistingProducts)
	if !load(ctx, o, log, report, domain.TableCvssV2, batch.FactsV2) {
		return loadErr(report)
	}
	if !load(ctx, o, log, report, domain.TableCvssV3, batch.FactsV3) {
		return loadErr(report)
	}
	if !load(ctx, o, log, report, domain.TableCvssV4, batch.FactsV4) {
		return loadErr(report)
	}
	if !load(ctx, o, log, report, domain.TableBridge, products.Bridge) {
		return loadErr(report)
	}

	// Final stage: dimension aggregates are recomputed over all persisted
	// rows, not incremented per batch, so a replayed batch leaves them
	// unchanged.
	ctx, aggSpan := o.tracer.Start(ctx, "pipeline.refresh_aggregates")
	err = o.warehouse.RefreshDimensionAggregates(ctx)
	aggSpan.End()
	if err != nil {
		report.Failed = true
		report.FailedTable = domain.TableDimVendor
		return fmt.Errorf("refreshing dimension aggregates: %w", err)
	}
	return nil
}

// foldResolved accounts dimension identities the resolver matched against
// persisted rows: they count as processed and skipped even though they never
// reach the loader.
func foldResolved(report *domain.RunReport, table string, n int) {
	if n == 0 {
		return
	}
	rep := report.Tables[table]
	rep.Processed += n
	rep.Skipped += n
	report.Tables[table] = rep
	telemetry.RowsSkipped.WithLabelValues(table).Add(float64(n))
}

func loadErr(report *domain.RunReport) error {
	rep := report.Tables[report.FailedTable]
	return fmt.Errorf("loading %s: %s", report.FailedTable, rep.Error)
}

// load appends one table and folds the result into the report. Returns false
// when the run must stop.
func load[R domain.Row](ctx context.Context, o *Orchestrator, log *slog.Logger, report *domain.RunReport, table string, rows []R) bool {
	spec := tableSpecs[table]

	ctx, span := o.tracer.Start(ctx, "pipeline.load",
		trace.WithAttributes(attribute.String("table", table)))
	res, err := loader.Append(ctx, o.warehouse, table, spec.columns, spec.keys, rows)
	span.End()

	rep := res.Report()
	if err != nil {
		rep.Failed = res.Processed - res.Skipped
		rep.Error = err.Error()
		report.Failed = true
		report.FailedTable = table
		report.Tables[table] = rep
		telemetry.LoadFailures.WithLabelValues(table).Inc()
		return false
	}
	report.Tables[table] = rep
	telemetry.RowsInserted.WithLabelValues(table).Add(float64(res.Inserted))
	telemetry.RowsSkipped.WithLabelValues(table).Add(float64(res.Skipped))
	log.Info("table loaded",
		"table", table,
		"processed", res.Processed,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
	)
	return true
}

func sourceNames(batch *facts.Batch) []string {
	names := make([]string, 0, len(batch.FactsV2)+len(batch.FactsV3)+len(batch.FactsV4))
	for _, f := range batch.FactsV2 {
		names = append(names, f.Source)
	}
	for _, f := range batch.FactsV3 {
		names = append(names, f.Source)
	}
	for _, f := range batch.FactsV4 {
		names = append(names, f.Source)
	}
	return names
}

func stampSourceIDs(batch *facts.Batch, index map[string]int64) {
	for i := range batch.FactsV2 {
		batch.FactsV2[i].SourceID = index[batch.FactsV2[i].Source]
	}
	for i := range batch.FactsV3 {
		batch.FactsV3[i].SourceID = index[batch.FactsV3[i].Source]
	}
	for i := range batch.FactsV4 {
		batch.FactsV4[i].SourceID = index[batch.FactsV4[i].Source]
	}
}
