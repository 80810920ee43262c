// Package datadog implements a Datadog backend for the internal/metrics
// package.
//
// Submission model:
//   - observations are buffered in-memory under a mutex
//   - a background loop flushes once per minute (configurable)
//   - Close() stops the loop and flushes one final time
//
// Long runs get a time series while in flight; short CLI runs get their tail
// flush at shutdown. Flush snapshots and resets buffers under the lock, then
// submits out of lock, so pipeline goroutines are never blocked on Datadog.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"docpipe/internal/metrics"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to
	// "docpipe".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// Defaults to 60 seconds.
	FlushEvery time.Duration

	// Unexported test seams. Production code never sets them; tests use
	// them to avoid real submission and nondeterministic tickers.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the minimal slice of the Datadog SDK the backend
// needs. The SDK exposes a concrete *datadogV2.MetricsApi; depending on this
// interface instead keeps the payload path testable without HTTP.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu sync.Mutex

	collectionCounts   map[string]float64 // status -> count
	recordCounts       map[string]float64 // kind -> count
	batchCounts        map[string]float64 // status -> count
	modelAttemptCounts map[string]float64 // status -> count
	stageDurations     map[string][]float64
}

// NewBackend constructs a Datadog backend using the official client.
// Credentials come from the DD_API_KEY / DD_APP_KEY environment, as the
// client defaults. Network errors surface from Flush, not here.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "docpipe"
	}

	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		client := dd.NewAPIClient(dd.NewConfiguration())
		submitter = datadogV2.NewMetricsApi(client)
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),

		baseTags: baseTags,

		now:       nowFn,
		newTicker: newTicker,

		collectionCounts:   make(map[string]float64),
		recordCounts:       make(map[string]float64),
		batchCounts:        make(map[string]float64),
		modelAttemptCounts: make(map[string]float64),
		stageDurations:     make(map[string][]float64),
	}

	go b.loop()
	return b, nil
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the background flush loop and performs one final Flush. Call
// once, at process shutdown.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend. Unknown metric names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch name {
	case metrics.CollectionsTotal:
		b.collectionCounts[statusLabel(labels)] += delta
	case metrics.RecordsTotal:
		kind := labels["kind"]
		if kind == "" {
			return
		}
		b.recordCounts[kind] += delta
	case metrics.BatchesTotal:
		b.batchCounts[statusLabel(labels)] += delta
	case metrics.ModelAttemptsTotal:
		b.modelAttemptCounts[statusLabel(labels)] += delta
	}
}

// ObserveHistogram implements metrics.Backend. Unknown metric names are
// ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if name == metrics.StageDurationSeconds {
		stage := labels["stage"]
		if stage == "" {
			stage = "unknown"
		}
		b.stageDurations[stage] = append(b.stageDurations[stage], value)
	}
}

func statusLabel(labels metrics.Labels) string {
	if s := labels["status"]; s != "" {
		return s
	}
	return "unknown"
}

// snapshot is the buffered state detached from the backend so payload
// building and submission happen out of lock.
type snapshot struct {
	collectionCounts   map[string]float64
	recordCounts       map[string]float64
	batchCounts        map[string]float64
	modelAttemptCounts map[string]float64
	stageDurations     map[string][]float64
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{
		collectionCounts:   b.collectionCounts,
		recordCounts:       b.recordCounts,
		batchCounts:        b.batchCounts,
		modelAttemptCounts: b.modelAttemptCounts,
		stageDurations:     b.stageDurations,
	}

	b.collectionCounts = make(map[string]float64)
	b.recordCounts = make(map[string]float64)
	b.batchCounts = make(map[string]float64)
	b.modelAttemptCounts = make(map[string]float64)
	b.stageDurations = make(map[string][]float64)

	return s
}

func (s snapshot) isEmpty() bool {
	return len(s.collectionCounts) == 0 &&
		len(s.recordCounts) == 0 &&
		len(s.batchCounts) == 0 &&
		len(s.modelAttemptCounts) == 0 &&
		len(s.stageDurations) == 0
}

// Flush submits buffered metrics and resets local buffers. Buffers are reset
// even when submission fails so the pipeline never backs up behind Datadog;
// delivery is best effort.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	series := b.buildSeries(snap, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}

	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries constructs the Datadog series for a snapshot at a fixed
// timestamp. Pure, so naming and tagging are unit-tested without network.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, 16)

	addStatusCounts := func(metric string, counts map[string]float64) {
		for status, v := range counts {
			if v == 0 {
				continue
			}
			series = append(series, countSeries(metric, v, withTags(b.baseTags, "status:"+status), nowUnix))
		}
	}

	addStatusCounts("docpipe.collections.total", s.collectionCounts)
	addStatusCounts("docpipe.batches.total", s.batchCounts)
	addStatusCounts("docpipe.model_attempts.total", s.modelAttemptCounts)

	for kind, v := range s.recordCounts {
		if v == 0 {
			continue
		}
		series = append(series, countSeries("docpipe.records.total", v, withTags(b.baseTags, "kind:"+kind), nowUnix))
	}

	for stage, samples := range s.stageDurations {
		addPercentiles(&series, withTags(b.baseTags, "stage:"+stage), "docpipe.stage.duration_seconds", samples, nowUnix)
	}

	return series
}

// addPercentiles appends a fixed set of percentile gauges for a sample set.
// It sorts a copy and does nothing for an empty set.
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, metricPrefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series, gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix))
	*series = append(*series, gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix))
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,service:docpipe".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
