package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"docpipe/internal/pipeline"
	"docpipe/internal/progress"
)

// runner is the slice of *pipeline.Pipeline the handlers need; tests swap in
// a fake.
type runner interface {
	Run(ctx context.Context, tenantID string) (*pipeline.Result, error)
	RunWithProgress(ctx context.Context, tenantID string, onProgress progress.Subscriber) (*pipeline.Result, error)
}

type server struct {
	pipe runner
}

func newServer(pipe runner) *server {
	return &server{pipe: pipe}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post("/tenants/{tenantID}/runs", s.handleRun)
	r.Get("/tenants/{tenantID}/runs/stream", s.handleRunStream)
	return r
}

// handleRun executes a run synchronously and returns the full result JSON.
// Fatal pipeline errors (stores unreachable, no collections) map to 502;
// per-collection failures are part of the result body, not an HTTP error.
func (s *server) handleRun(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	res, err := s.pipe.Run(r.Context(), tenantID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRunStream executes a run while streaming every progress event as a
// Server-Sent Event. The final frame is either "result" carrying the run's
// result JSON or "error" carrying the fatal error.
func (s *server) handleRunStream(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Events are written from the pipeline's own goroutine; the subscriber
	// contract is synchronous so no locking is needed here. The frame body is
	// the event itself, not the snapshot wrapper, so clients see the
	// timestamp/level/message/detail/stage/step/percentage shape.
	res, err := s.pipe.RunWithProgress(r.Context(), tenantID, func(snap progress.Snapshot) {
		writeSSE(w, "progress", snap.Latest)
		flusher.Flush()
	})
	if err != nil {
		writeSSE(w, "error", map[string]string{"error": err.Error()})
		flusher.Flush()
		return
	}
	writeSSE(w, "result", res)
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
