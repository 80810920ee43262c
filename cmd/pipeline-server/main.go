// Command pipeline-server exposes ingestion runs over HTTP: a blocking JSON
// endpoint, a Server-Sent Events stream of run progress, and optional
// cron-scheduled runs for a fixed tenant list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

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

func main() {
	var (
		addr           string
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
		scheduleExpr   string
		scheduleList   string
	)

	flag.StringVar(&addr, "addr", ":8080", "listen address")
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
	flag.StringVar(&scheduleExpr, "schedule", "", "cron expression for scheduled runs (empty = disabled)")
	flag.StringVar(&scheduleList, "schedule-tenants", "", "comma-separated tenants to run on the schedule")

	flag.Parse()

	if docstoreURI == "" {
		docstoreURI = os.Getenv("DOCSTORE_URI")
	}
	if storageDSN == "" {
		storageDSN = os.Getenv("STORAGE_DSN")
	}

	models, err := config.BuildModels(modelsFlg)
	if err != nil {
		log.Fatalf("models: %v", err)
	}

	backendName := metricsBackend
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			Tags: datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
		} else {
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := docstore.New(ctx, docstore.Config{
		Kind:     docstoreKind,
		URI:      docstoreURI,
		Database: docstoreDB,
	})
	if err != nil {
		log.Fatalf("document store: %v", err)
	}
	defer docs.Close(context.Background())

	store, err := storage.New(ctx, storage.Config{Kind: storageKind, DSN: storageDSN})
	if err != nil {
		log.Fatalf("target store: %v", err)
	}
	defer store.Close()

	resolver := mapping.NewResolver(mapping.Options{Models: models, RateLimitRPS: rateLimitRPS})
	pipe := pipeline.New(docs, store, resolver, pipeline.Config{
		SampleSize: sampleSize,
		BatchSize:  batchSize,
	})

	srv := newServer(pipe)

	if scheduleExpr != "" {
		sched, err := startScheduler(scheduleExpr, splitTenants(scheduleList), pipe)
		if err != nil {
			log.Fatalf("scheduler: %v", err)
		}
		defer sched.Stop()
	}

	httpSrv := &http.Server{Addr: addr, Handler: srv.routes()}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}

// startScheduler registers one cron entry per tenant. Invalid expressions
// fail startup; a failing scheduled run only logs.
func startScheduler(expr string, tenants []string, pipe *pipeline.Pipeline) (*cron.Cron, error) {
	if len(tenants) == 0 {
		return nil, fmt.Errorf("-schedule set but -schedule-tenants is empty")
	}
	c := cron.New()
	for _, tenant := range tenants {
		tenant := tenant
		if _, err := c.AddFunc(expr, func() {
			res, err := pipe.Run(context.Background(), tenant)
			if err != nil {
				log.Printf("scheduled run failed: tenant=%s err=%v", tenant, err)
				return
			}
			log.Printf("scheduled run done: tenant=%s run=%s inserted=%d failed_collections=%d",
				tenant, res.RunID, res.TotalRecordsInserted, res.FailedCollections)
		}); err != nil {
			return nil, fmt.Errorf("cron %q: %w", expr, err)
		}
	}
	c.Start()
	log.Printf("scheduler started: %q for %d tenants", expr, len(tenants))
	return c, nil
}

func splitTenants(csv string) []string {
	var out []string
	for _, t := range strings.Split(csv, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
