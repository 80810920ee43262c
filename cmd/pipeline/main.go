package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"docpipe/internal/config"
	"docpipe/internal/docstore"
	"docpipe/internal/mapping"
	"docpipe/internal/metrics"
	"docpipe/internal/metrics/datadog"
	"docpipe/internal/pipeline"
	"docpipe/internal/storage"

	// register document-store and storage backends with their factories.
	_ "docpipe/internal/docstore/file"
	_ "docpipe/internal/docstore/mongo"
	_ "docpipe/internal/storage/mssql"
	_ "docpipe/internal/storage/postgres"
	_ "docpipe/internal/storage/sqlite"
)

// main runs one ingestion for a single tenant: connect both stores, build the
// model failover chain, execute the pipeline, and print the result JSON to
// stdout. Progress goes to stderr so the two streams can be separated.
func main() {
	var (
		tenantID       string
		docstoreKind   string
		docstoreURI    string
		docstoreDB     string
		storageKind    string
		storageDSN     string
		modelsFlg      string
		sampleSize     int
		batchSize      int
		rateLimitRPS   float64
		metricsBackend string
		timeoutFlg     time.Duration
	)

	flag.StringVar(&tenantID, "tenant", "", "tenant identifier (required)")
	flag.StringVar(&docstoreKind, "docstore", "mongo", "document store backend kind (mongo, file)")
	flag.StringVar(&docstoreURI, "docstore-uri", "", "document store URI (overrides env DOCSTORE_URI)")
	flag.StringVar(&docstoreDB, "docstore-db", "", "tenant database name in the document store")
	flag.StringVar(&storageKind, "storage", "postgres", "target store backend kind (postgres, sqlite, mssql)")
	flag.StringVar(&storageDSN, "dsn", "", "target store DSN (overrides env STORAGE_DSN)")
	flag.StringVar(&modelsFlg, "models", "openai/gpt-4o-mini,anthropic/claude-3-haiku-20240307",
		"ordered model failover list, comma-separated provider/model pairs")
	flag.IntVar(&sampleSize, "sample", 0, "documents sampled per collection (0 = default)")
	flag.IntVar(&batchSize, "batch", 0, "records per insert batch (0 = default)")
	flag.Float64Var(&rateLimitRPS, "rate-limit", 0, "model requests per second (0 = unlimited)")
	flag.StringVar(&metricsBackend, "metrics-backend", "", "metrics backend to use (datadog, none)")
	flag.DurationVar(&timeoutFlg, "timeout", 0, "overall run timeout (0 = none)")
	verbose := flag.Bool("v", false, "stream progress output to stderr")

	flag.Parse()

	if tenantID == "" {
		fatalf("missing required -tenant")
	}
	if docstoreURI == "" {
		docstoreURI = os.Getenv("DOCSTORE_URI")
	}
	if storageDSN == "" {
		storageDSN = os.Getenv("STORAGE_DSN")
	}

	models, err := config.BuildModels(modelsFlg)
	if err != nil {
		fatalf("models: %v", err)
	}

	// Decide metrics backend: flag → env → default (disabled).
	backendName := metricsBackend
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		// The Datadog backend buffers and submits periodically, then once
		// more at Close(). Long runs get a real time series instead of a
		// single spike at the end.
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			Tags: extraTags,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
			if *verbose {
				log.Printf("metrics: backend=%v tags=%v", backendName, extraTags)
			}
			metrics.SetBackend(b)
			defer func() {
				if err := b.Close(); err != nil {
					log.Printf("metrics: datadog close/flush error: %v", err)
				}
			}()
		}

	case "", "none":
		// metrics disabled; nop backend remains

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	ctx := context.Background()
	if timeoutFlg > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeoutFlg)
		defer cancel()
	}

	docs, err := docstore.New(ctx, docstore.Config{
		Kind:     docstoreKind,
		URI:      docstoreURI,
		Database: docstoreDB,
	})
	if err != nil {
		fatalf("document store: %v", err)
	}
	defer docs.Close(context.Background())

	store, err := storage.New(ctx, storage.Config{Kind: storageKind, DSN: storageDSN})
	if err != nil {
		fatalf("target store: %v", err)
	}
	defer store.Close()

	resolver := mapping.NewResolver(mapping.Options{
		Models:       models,
		RateLimitRPS: rateLimitRPS,
	})

	cfg := pipeline.Config{SampleSize: sampleSize, BatchSize: batchSize}
	if *verbose {
		cfg.Console = os.Stderr
	}

	start := time.Now()
	res, err := pipeline.New(docs, store, resolver, cfg).Run(ctx, tenantID)
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fatalf("encode result: %v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
	if res.FailedCollections > 0 {
		os.Exit(2)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
