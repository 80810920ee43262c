// Package loader writes clean, deduplicated records to the relational store
// in fixed-size batches, continuing past a failed batch and recording
// per-batch outcomes.
package loader

import (
	"context"
	"fmt"

	"docpipe/internal/catalog"
	"docpipe/internal/document"
	"docpipe/internal/metrics"
	"docpipe/internal/progress"
	"docpipe/internal/storage"
	"docpipe/internal/transform"
)

// DefaultBatchSize is the number of records per insert call.
const DefaultBatchSize = 100

// BatchResult records one batch write attempt.
type BatchResult struct {
	Table      string `json:"table"`
	BatchIndex int    `json:"batchIndex"`
	Attempted  int    `json:"attempted"`
	Inserted   int64  `json:"inserted"`
	Error      string `json:"error,omitempty"`
}

// TableResult aggregates all batches for one target table.
type TableResult struct {
	Table     string        `json:"table"`
	Attempted int           `json:"attempted"`
	Inserted  int64         `json:"inserted"`
	Batches   []BatchResult `json:"batches"`
}

// Errors returns the per-batch error messages, if any.
func (t TableResult) Errors() []string {
	var out []string
	for _, b := range t.Batches {
		if b.Error != "" {
			out = append(out, b.Error)
		}
	}
	return out
}

// Result is one collection's load outcome across all target tables.
type Result struct {
	Attempted int           `json:"attempted"`
	Inserted  int64         `json:"inserted"`
	Tables    []TableResult `json:"tables"`
}

// Failed reports whether every batch across every table errored. A load with
// at least one batch landed (or nothing to load) is not a failure.
func (r Result) Failed() bool {
	any, allFailed := false, true
	for _, t := range r.Tables {
		for _, b := range t.Batches {
			any = true
			if b.Error == "" {
				allFailed = false
			}
		}
	}
	return any && allFailed
}

// Reporter receives per-batch progress events. *progress.Bus satisfies it.
type Reporter interface {
	Log(level progress.Level, message, detail string)
}

// Loader batches records into a storage.Store.
type Loader struct {
	store     storage.Store
	batchSize int
}

func New(store storage.Store, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Loader{store: store, batchSize: batchSize}
}

// Load writes the records table by table. For N records of one table and
// batch size B, exactly ceil(N/B) insert calls are made; a failed batch is
// recorded and the next batch is still attempted. Load never returns an
// error: connection-level problems show up as batch errors in the Result.
func (l *Loader) Load(ctx context.Context, recs []transform.Record, rep Reporter) Result {
	log := func(level progress.Level, message, detail string) {
		if rep != nil {
			rep.Log(level, message, detail)
		}
	}

	var res Result
	for _, table := range tableOrder(recs) {
		tabRecs := recordsFor(recs, table)
		tr := l.loadTable(ctx, table, tabRecs, log)
		res.Attempted += tr.Attempted
		res.Inserted += tr.Inserted
		res.Tables = append(res.Tables, tr)
	}
	return res
}

func (l *Loader) loadTable(ctx context.Context, table string, recs []transform.Record, log func(progress.Level, string, string)) TableResult {
	tr := TableResult{Table: table, Attempted: len(recs)}

	columns, rows := buildRows(table, recs)
	for i := 0; i < len(rows); i += l.batchSize {
		end := i + l.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[i:end]
		idx := i / l.batchSize

		inserted, err := l.store.InsertBatch(ctx, table, columns, batch)
		br := BatchResult{Table: table, BatchIndex: idx, Attempted: len(batch), Inserted: inserted}
		if err != nil {
			br.Error = err.Error()
			metrics.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"status": "failed"})
			log(progress.LevelError,
				fmt.Sprintf("batch %d for %s failed (%d records)", idx, table, len(batch)),
				err.Error())
		} else {
			metrics.IncCounter(metrics.BatchesTotal, 1, metrics.Labels{"status": "ok"})
			log(progress.LevelInfo,
				fmt.Sprintf("batch %d for %s inserted %d/%d", idx, table, inserted, len(batch)), "")
		}
		tr.Inserted += br.Inserted
		tr.Batches = append(tr.Batches, br)
	}
	return tr
}

// buildRows converts records into a fixed column list and positional rows.
// The column list is the full catalog declaration for the table, so sparse
// records insert NULL for columns they lack.
func buildRows(table string, recs []transform.Record) ([]string, [][]any) {
	tab, ok := catalog.Lookup(table)
	if !ok {
		return nil, nil
	}
	columns := tab.ColumnNames()
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		row := make([]any, len(columns))
		for i, col := range columns {
			switch col {
			case catalog.TenantColumn:
				row[i] = r.TenantID
			case catalog.ProvenanceColumn:
				row[i] = r.SourceDocumentID
			default:
				if v, ok := r.Value(col); ok {
					row[i] = driverArg(v)
				}
			}
		}
		rows = append(rows, row)
	}
	return columns, rows
}

func driverArg(v document.Value) any {
	switch v.Kind {
	case document.KindString:
		return v.Str
	case document.KindNumber:
		return v.Num
	case document.KindBool:
		return v.Bool
	case document.KindTime:
		return v.Time
	default:
		return nil
	}
}

// tableOrder returns the distinct tables in catalog declaration order so
// load order is deterministic.
func tableOrder(recs []transform.Record) []string {
	present := make(map[string]bool, len(recs))
	for _, r := range recs {
		present[r.Table] = true
	}
	out := make([]string, 0, len(present))
	for _, name := range catalog.TableNames() {
		if present[name] {
			out = append(out, name)
		}
	}
	return out
}

func recordsFor(recs []transform.Record, table string) []transform.Record {
	out := make([]transform.Record, 0, len(recs))
	for _, r := range recs {
		if r.Table == table {
			out = append(out, r)
		}
	}
	return out
}
