// Package pipeline orchestrates one tenant ingestion run: discover the
// tenant's collections, then for each collection analyze, resolve a mapping,
// transform, validate, deduplicate, and batch-load, emitting every step to
// the progress bus and aggregating per-collection results into one Result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"docpipe/internal/analyzer"
	"docpipe/internal/docstore"
	"docpipe/internal/loader"
	"docpipe/internal/mapping"
	"docpipe/internal/metrics"
	"docpipe/internal/progress"
	"docpipe/internal/storage"
	"docpipe/internal/transform"
)

// Stage names emitted on the progress bus. A run moves through them in
// order; failed is terminal and reachable only from discovering.
const (
	StageIdle        = "idle"
	StageDiscovering = "discovering"
	StageProcessing  = "processing"
	StageAggregating = "aggregating"
	StageDone        = "done"
	StageFailed      = "failed"
)

// Config tunes a Pipeline. Zero values take the component defaults.
type Config struct {
	// SampleSize is the number of documents profiled per collection.
	SampleSize int

	// BatchSize is the loader's records-per-insert-call.
	BatchSize int

	// Console receives formatted progress output; nil discards it.
	Console io.Writer
}

// Pipeline runs tenant ingestions. Collections are processed sequentially;
// the only cancellation points are between collections and inside the
// stores' and providers' own context handling.
type Pipeline struct {
	docs     docstore.Store
	store    storage.Store
	resolver *mapping.Resolver

	sampleSize int
	batchSize  int
	console    io.Writer

	// newRunID is an overridable seam for deterministic tests.
	newRunID func() string
}

// New creates a Pipeline over the given document store, relational store,
// and mapping resolver.
func New(docs docstore.Store, store storage.Store, resolver *mapping.Resolver, cfg Config) *Pipeline {
	return &Pipeline{
		docs:       docs,
		store:      store,
		resolver:   resolver,
		sampleSize: cfg.SampleSize,
		batchSize:  cfg.BatchSize,
		console:    cfg.Console,
		newRunID:   uuid.NewString,
	}
}

// Run executes one full run for the tenant and returns the aggregated
// Result, including the capped event log.
//
// Errors are returned only for fatal conditions: either store unreachable at
// run start, no collections enumerable, or ctx cancellation. Everything else
// degrades into counters and log entries inside the Result.
func (p *Pipeline) Run(ctx context.Context, tenantID string) (*Result, error) {
	return p.run(ctx, tenantID, nil)
}

// RunWithProgress is Run with every event additionally pushed to onProgress
// as it happens. onProgress must be cheap and non-blocking; a stalling sink
// stalls the pipeline.
func (p *Pipeline) RunWithProgress(ctx context.Context, tenantID string, onProgress progress.Subscriber) (*Result, error) {
	return p.run(ctx, tenantID, onProgress)
}

func (p *Pipeline) run(ctx context.Context, tenantID string, onProgress progress.Subscriber) (*Result, error) {
	start := time.Now()
	bus := progress.NewBus(p.console)
	if onProgress != nil {
		bus.Subscribe(onProgress)
	}

	res := &Result{RunID: p.newRunID(), TenantID: tenantID}
	bus.UpdateProgress(StageDiscovering, "discovering collections", 0, "tenant "+tenantID)

	collections, err := p.discover(ctx, tenantID)
	if err != nil {
		bus.UpdateProgress(StageFailed, "run failed", 0, err.Error())
		return nil, err
	}
	res.TotalCollections = len(collections)
	bus.Log(progress.LevelInfo, fmt.Sprintf("found %d collections", len(collections)), "")

	for i, collection := range collections {
		// Safe point: a caller wanting early termination interrupts here.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pct := 5 + i*90/len(collections)
		bus.UpdateProgress(StageProcessing,
			fmt.Sprintf("collection %d/%d: %s", i+1, len(collections), collection), pct, "")

		cr := p.processCollection(ctx, tenantID, collection, bus)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res.Collections = append(res.Collections, cr)
		res.ProcessedCollections++
		if !cr.Success {
			res.FailedCollections++
			metrics.IncCounter(metrics.CollectionsTotal, 1, metrics.Labels{"status": "failed"})
		} else {
			metrics.IncCounter(metrics.CollectionsTotal, 1, metrics.Labels{"status": "ok"})
		}
		res.TotalRecordsProcessed += cr.RecordsProcessed
		res.TotalRecordsInserted += cr.RecordsInserted
	}

	bus.UpdateProgress(StageAggregating, "aggregating results", 95, "")
	res.SuccessRate = successRate(res.TotalRecordsProcessed, res.TotalRecordsInserted)
	res.ProcessingTimeSeconds = time.Since(start).Seconds()

	bus.UpdateProgress(StageDone, "pipeline complete", 100,
		fmt.Sprintf("%d/%d collections, %d records inserted, success rate %s%%",
			res.ProcessedCollections-res.FailedCollections, res.TotalCollections,
			res.TotalRecordsInserted, res.SuccessRate))
	res.Log = bus.Entries()
	return res, nil
}

// discover verifies both stores and lists the tenant's collections. Any
// failure here is fatal to the run.
func (p *Pipeline) discover(ctx context.Context, tenantID string) ([]string, error) {
	if err := p.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("target store unreachable: %w", err)
	}
	if err := p.store.EnsureTables(ctx); err != nil {
		return nil, fmt.Errorf("target store schema: %w", err)
	}

	collections, err := p.docs.ListCollections(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list collections for tenant %s: %w", tenantID, err)
	}
	if len(collections) == 0 {
		return nil, fmt.Errorf("no collections found for tenant %s", tenantID)
	}
	return collections, nil
}

func (p *Pipeline) processCollection(ctx context.Context, tenantID, collection string, bus *progress.Bus) CollectionResult {
	start := time.Now()
	cr := CollectionResult{Collection: collection}
	defer func() {
		cr.ElapsedSeconds = time.Since(start).Seconds()
		metrics.ObserveHistogram(metrics.StageDurationSeconds, cr.ElapsedSeconds, metrics.Labels{"stage": "collection"})
	}()

	// Analyzing.
	bus.Log(progress.LevelInfo, "analyzing "+collection, "")
	profile, err := analyzer.Analyze(ctx, p.docs, collection, p.sampleSize)
	if err != nil {
		if errors.Is(err, analyzer.ErrEmptyCollection) {
			bus.Log(progress.LevelWarning, "skipping empty collection "+collection, "")
			cr.Success, cr.Skipped = true, true
			return cr
		}
		bus.Log(progress.LevelError, "analysis failed for "+collection, err.Error())
		cr.Error = err.Error()
		return cr
	}
	cr.Profile = profile
	cr.DocumentsRead = int(profile.DocumentCount)
	bus.Log(progress.LevelData,
		fmt.Sprintf("profiled %s: %d documents, %d fields", collection, profile.DocumentCount, len(profile.Fields)), "")

	// Mapping. Resolve only errors on ctx cancellation; the caller's loop
	// checks ctx right after.
	bus.Log(progress.LevelInfo, "resolving mapping for "+collection, "")
	m, err := p.resolver.Resolve(ctx, profile, bus)
	if err != nil {
		cr.Error = err.Error()
		return cr
	}
	cr.Mapping = m

	// Transforming.
	bus.Log(progress.LevelInfo, "transforming "+collection, "")
	docs, err := p.docs.LoadAll(ctx, collection)
	if err != nil {
		bus.Log(progress.LevelError, "loading documents failed for "+collection, err.Error())
		cr.Error = err.Error()
		return cr
	}
	records, stats := transform.Apply(tenantID, profile, m, docs)
	cr.DocumentsRead = stats.Documents
	cr.DroppedSparse = stats.DroppedSparse
	if stats.DroppedSparse > 0 {
		bus.Log(progress.LevelWarning,
			fmt.Sprintf("dropped %d sparse rows in %s", stats.DroppedSparse, collection), "")
	}

	// Validating and deduplicating.
	clean, invalid := transform.Validate(records)
	cr.DroppedInvalid = invalid
	deduped, removed := transform.Dedupe(clean)
	cr.DuplicatesRemoved = removed
	cr.RecordsProcessed = len(deduped)
	bus.Log(progress.LevelData,
		fmt.Sprintf("%s: %d records ready (%d invalid, %d duplicates removed)",
			collection, len(deduped), invalid, removed), "")
	metrics.IncCounter(metrics.RecordsTotal, float64(len(deduped)), metrics.Labels{"kind": "processed"})
	metrics.IncCounter(metrics.RecordsTotal, float64(invalid), metrics.Labels{"kind": "dropped"})
	metrics.IncCounter(metrics.RecordsTotal, float64(removed), metrics.Labels{"kind": "duplicate"})

	// Loading.
	bus.Log(progress.LevelInfo, "loading "+collection, "")
	loadRes := loader.New(p.store, p.batchSize).Load(ctx, deduped, bus)
	cr.RecordsInserted = loadRes.Inserted
	cr.Tables = loadRes.Tables
	metrics.IncCounter(metrics.RecordsTotal, float64(loadRes.Inserted), metrics.Labels{"kind": "inserted"})

	if loadRes.Failed() {
		bus.Log(progress.LevelError, "all batches failed for "+collection, "")
		cr.Error = "all batches failed"
		return cr
	}

	cr.Success = true
	bus.Log(progress.LevelSuccess,
		fmt.Sprintf("%s done: %d/%d records inserted", collection, loadRes.Inserted, loadRes.Attempted), "")
	return cr
}
