// Package metrics is the pipeline's thin metrics facade.
//
// The core pipeline code depends only on the Backend interface and the
// package-level helpers; vendor-specific submission (Datadog) lives in a
// subpackage and is wired in by the command layer. With no backend set,
// every call is a no-op.
package metrics

import "sync"

// Labels are metric dimensions, e.g. {"stage": "loading", "status": "ok"}.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush submits buffered observations; Close flushes once more and
	// releases resources.
	Flush() error
	Close() error
}

// Metric names the pipeline emits.
const (
	CollectionsTotal     = "pipeline_collections_total"      // labels: status=ok|failed
	RecordsTotal         = "pipeline_records_total"          // labels: kind=processed|inserted|dropped|duplicate
	BatchesTotal         = "pipeline_batches_total"          // labels: status=ok|failed
	ModelAttemptsTotal   = "pipeline_model_attempts_total"   // labels: status=ok|failed
	StageDurationSeconds = "pipeline_stage_duration_seconds" // labels: stage
)

var (
	mu      sync.RWMutex
	backend Backend
)

// SetBackend installs the process-wide backend. Passing nil reverts to the
// no-op default.
func SetBackend(b Backend) {
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter on the installed backend, if any.
func IncCounter(name string, delta float64, labels Labels) {
	if b := current(); b != nil {
		b.IncCounter(name, delta, labels)
	}
}

// ObserveHistogram records one sample on the installed backend, if any.
func ObserveHistogram(name string, value float64, labels Labels) {
	if b := current(); b != nil {
		b.ObserveHistogram(name, value, labels)
	}
}

// Flush flushes the installed backend, if any.
func Flush() error {
	if b := current(); b != nil {
		return b.Flush()
	}
	return nil
}

// Close closes the installed backend, if any, and uninstalls it.
func Close() error {
	mu.Lock()
	b := backend
	backend = nil
	mu.Unlock()
	if b != nil {
		return b.Close()
	}
	return nil
}
