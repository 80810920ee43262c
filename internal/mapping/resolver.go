package mapping

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"docpipe/internal/analyzer"
	"docpipe/internal/catalog"
	"docpipe/internal/mapping/provider"
	"docpipe/internal/metrics"
	"docpipe/internal/progress"
)

// Reporter receives the resolver's progress events. *progress.Bus satisfies
// it; a nil Reporter discards events.
type Reporter interface {
	Log(level progress.Level, message, detail string)
}

// ModelRef is one (provider, model id) pair in the failover order.
type ModelRef struct {
	Provider provider.Provider
	Model    string
}

// Options configure the resolver's retry/backoff schedule.
type Options struct {
	// Models is the ordered failover list; the first entry is the primary
	// model. Models are tried strictly in order, and one model's retries
	// complete (or exhaust) before the next model is tried.
	Models []ModelRef

	// MaxAttempts is the per-model attempt budget (default 3). A timed-out
	// or malformed attempt counts against it.
	MaxAttempts int

	// AttemptTimeout bounds each individual model call (default 30s).
	AttemptTimeout time.Duration

	// BackoffInitial is the sleep before the second attempt (default 500ms);
	// it doubles per attempt up to BackoffMax (default 8s) with
	// +/-BackoffJitterFrac jitter (default 0.2).
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
	BackoffJitterFrac float64

	// RateLimitRPS, when > 0, applies a global limit across all model calls.
	RateLimitRPS float64
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 30 * time.Second
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 8 * time.Second
	}
	if o.BackoffJitterFrac <= 0 {
		o.BackoffJitterFrac = 0.2
	}
	return o
}

// Resolver produces TableMappings, model-backed with rule fallback.
type Resolver struct {
	opts    Options
	limiter *rate.Limiter

	// sleep is an overridable seam so retry schedules can be unit-tested
	// without waiting. Production sleeps on a timer honoring ctx.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewResolver creates a Resolver. Passing zero Options (no models) yields a
// resolver that always takes the rule-based path.
func NewResolver(opts Options) *Resolver {
	opts = opts.withDefaults()
	r := &Resolver{opts: opts, sleep: sleepCtx}
	if opts.RateLimitRPS > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	return r
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve maps the profile onto the catalog.
//
// The only error Resolve returns is ctx cancellation: model failures retry,
// fail over, and finally fall through to ResolveWithRules, which cannot
// fail.
func (r *Resolver) Resolve(ctx context.Context, profile analyzer.FieldProfile, rep Reporter) (TableMapping, error) {
	log := reporterFunc(rep)

	if len(r.opts.Models) == 0 {
		log(progress.LevelInfo, "no models configured, using rule-based mapping", profile.Collection)
		return ResolveWithRules(profile), nil
	}

	system := systemPrompt()
	user := userPrompt(profile)
	fieldNames := profileFieldNames(profile)

	for _, ref := range r.opts.Models {
		label := ref.Provider.Name() + "/" + ref.Model

		for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return TableMapping{}, err
			}
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					return TableMapping{}, err
				}
			}

			start := time.Now()
			text, err := r.completeOnce(ctx, ref, system, user)
			elapsed := time.Since(start).Truncate(time.Millisecond)

			if err == nil {
				m, perr := ParseModelResponse(text, fieldNames)
				if perr == nil {
					m.Source = "model:" + label
					metrics.IncCounter(metrics.ModelAttemptsTotal, 1, metrics.Labels{"status": "ok"})
					log(progress.LevelSuccess,
						fmt.Sprintf("mapping resolved by %s (attempt %d)", label, attempt),
						describeMapping(m))
					return m, nil
				}
				err = perr
			}

			metrics.IncCounter(metrics.ModelAttemptsTotal, 1, metrics.Labels{"status": "failed"})
			log(progress.LevelWarning,
				fmt.Sprintf("model attempt failed: %s (attempt %d/%d, %s)", label, attempt, r.opts.MaxAttempts, elapsed),
				err.Error())

			// Permanent provider errors skip the rest of this model's
			// budget; parse failures and transient errors retry.
			if _, isParse := err.(*ParseError); !isParse && !provider.IsTransient(err) {
				break
			}
			if attempt < r.opts.MaxAttempts {
				if serr := r.sleep(ctx, r.backoff(attempt)); serr != nil {
					return TableMapping{}, serr
				}
			}
		}
	}

	log(progress.LevelWarning, "all models exhausted, using rule-based mapping", profile.Collection)
	return ResolveWithRules(profile), nil
}

func (r *Resolver) completeOnce(ctx context.Context, ref ModelRef, system, user string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.opts.AttemptTimeout)
	defer cancel()

	return ref.Provider.Complete(attemptCtx, provider.Request{
		System:      system,
		User:        user,
		Model:       ref.Model,
		Temperature: 0.1,
	})
}

// backoff computes the sleep after the given 1-based attempt.
func (r *Resolver) backoff(attempt int) time.Duration {
	sleep := r.opts.BackoffInitial
	for i := 1; i < attempt && sleep < r.opts.BackoffMax; i++ {
		sleep *= 2
		if sleep > r.opts.BackoffMax {
			sleep = r.opts.BackoffMax
			break
		}
	}
	j := 1 + (rand.Float64()*2-1)*r.opts.BackoffJitterFrac
	return time.Duration(float64(sleep) * j)
}

func reporterFunc(rep Reporter) func(progress.Level, string, string) {
	if rep == nil {
		return func(progress.Level, string, string) {}
	}
	return rep.Log
}

func describeMapping(m TableMapping) string {
	parts := make([]string, 0, len(m.Targets))
	for _, t := range m.Targets {
		parts = append(parts, fmt.Sprintf("%s (confidence %.2f, %d fields)", t.Table, t.Confidence, len(t.Fields)))
	}
	if len(m.UnmappedFields) > 0 {
		parts = append(parts, fmt.Sprintf("%d unmapped", len(m.UnmappedFields)))
	}
	return strings.Join(parts, "; ")
}

func profileFieldNames(profile analyzer.FieldProfile) []string {
	out := make([]string, 0, len(profile.Fields))
	for _, f := range profile.Fields {
		out = append(out, f.Name)
	}
	return out
}

// ---- prompt construction ----

func systemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You map fields of a schema-less business data collection onto a fixed relational schema.\n")
	sb.WriteString("Target tables and their columns:\n")
	for _, t := range catalog.Tables() {
		sb.WriteString("- ")
		sb.WriteString(t.Name)
		sb.WriteString(": ")
		sb.WriteString(strings.Join(t.MappableColumns(), ", "))
		sb.WriteString("\n")
	}
	sb.WriteString("\nRespond with a single JSON object and nothing else:\n")
	sb.WriteString(`{"tables":[{"table":"<name>","confidence":0.0,"field_mappings":[{"source_field":"...","target_column":"...","transform":"none|decimal|timestamp"}]}],"unmapped_fields":["..."]}` + "\n")
	sb.WriteString("Use transform \"decimal\" for currency/amount fields and \"timestamp\" for date fields.\n")
	sb.WriteString("A collection may map to more than one table (e.g. an order with embedded line items). ")
	sb.WriteString("Only use the table and column names listed above.")
	return sb.String()
}

// userPrompt serializes the field profile. Sample values are de-identified:
// identifier-like fields carry no samples, and long values are truncated, to
// reduce noise and avoid shipping row identifiers to the model.
func userPrompt(profile analyzer.FieldProfile) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Collection %q with %d documents. Fields:\n", profile.Collection, profile.DocumentCount)
	for _, f := range profile.Fields {
		fmt.Fprintf(&sb, "- %s (%s", f.Name, f.Type)
		if f.Monetary {
			sb.WriteString(", monetary")
		}
		sb.WriteString(")")
		if samples := deidentifiedSamples(f); len(samples) > 0 {
			fmt.Fprintf(&sb, " e.g. %s", strings.Join(samples, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

const maxSampleLen = 40

func deidentifiedSamples(f analyzer.Field) []string {
	if isIdentifierName(f.Name) {
		return nil
	}
	out := make([]string, 0, len(f.SampleValues))
	for _, s := range f.SampleValues {
		if len(s) > maxSampleLen {
			s = s[:maxSampleLen] + "…"
		}
		out = append(out, fmt.Sprintf("%q", s))
	}
	return out
}

func isIdentifierName(name string) bool {
	return name == "id" || name == "uuid" || strings.HasSuffix(name, "_id")
}
