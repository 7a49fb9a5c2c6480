// Package observability provides Prometheus metrics and lightweight
// operation tracing for the sync and reconciliation pipeline.
//
// Spans are stored in-memory for inspection via the debug API; the metrics
// are served at /metrics.
package observability

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Operation Tracing ──────────────────────────────────────────────────────

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// Span records one sync or reconciliation operation.
type Span struct {
	ID        string            `json:"id"`
	Operation string            `json:"operation"` // "sync", "reconcile", "sweep", ...
	AccountID string            `json:"account_id,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// Tracer keeps a bounded in-memory ring of recent operation spans.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// NewTracer creates a tracer holding up to maxSpans recent spans.
func NewTracer(maxSpans int, enabled bool) *Tracer {
	if maxSpans <= 0 {
		maxSpans = 10_000
	}
	return &Tracer{
		spans:    make([]Span, 0, maxSpans),
		maxSpans: maxSpans,
		enabled:  enabled,
	}
}

// StartSpan begins a span for an operation against an account.
// The caller must call EndSpan when done.
func (t *Tracer) StartSpan(operation, accountID string) *Span {
	if !t.enabled {
		return &Span{Operation: operation}
	}
	return &Span{
		ID:        generateID(),
		Operation: operation,
		AccountID: accountID,
		StartTime: time.Now(),
		Status:    SpanOK,
	}
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, err error) {
	if !t.enabled || span == nil {
		return
	}

	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Ring buffer: overwrite oldest if at capacity
	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the most recent spans.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

// generateID creates a short unique ID (not cryptographically secure — fine for tracing).
var spanCounter atomic.Int64

func generateID() string {
	n := spanCounter.Add(1)
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), n)
}

// ─── Sync Metrics ───────────────────────────────────────────────────────────

// SyncsTotal counts account sync attempts by result.
var SyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "finsync",
	Subsystem: "sync",
	Name:      "syncs_total",
	Help:      "Total account sync attempts by result.",
}, []string{"result", "trigger"})

// SyncsInFlight tracks currently running account syncs.
var SyncsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "finsync",
	Subsystem: "sync",
	Name:      "in_flight",
	Help:      "Number of account syncs currently in flight.",
})

// SyncDuration tracks per-account sync duration.
var SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "finsync",
	Subsystem: "sync",
	Name:      "duration_seconds",
	Help:      "Duration of a single account sync.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
})

// SchedulerRunning reports whether the background scheduler is running.
var SchedulerRunning = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "finsync",
	Subsystem: "scheduler",
	Name:      "running",
	Help:      "Whether the sync scheduler is running (1) or stopped (0).",
})

// SweepAccountsDue tracks how many accounts were due in the last sweep.
var SweepAccountsDue = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "finsync",
	Subsystem: "scheduler",
	Name:      "sweep_accounts_due",
	Help:      "Accounts due for sync in the most recent sweep.",
})

// ─── Reconciliation Metrics ─────────────────────────────────────────────────

// ReconciliationsTotal counts reconciliation runs by outcome.
var ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "finsync",
	Subsystem: "reconcile",
	Name:      "runs_total",
	Help:      "Total reconciliation runs by outcome.",
}, []string{"outcome"})

// ReconciliationDiscrepancy tracks observed absolute discrepancies in minor units.
var ReconciliationDiscrepancy = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "finsync",
	Subsystem: "reconcile",
	Name:      "abs_discrepancy_minor",
	Help:      "Absolute reconciliation discrepancy in minor currency units.",
	Buckets:   []float64{0, 1, 10, 100, 1_000, 10_000, 100_000, 1_000_000},
})

// ReconciliationEntriesTotal counts correcting entries written.
var ReconciliationEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "finsync",
	Subsystem: "reconcile",
	Name:      "entries_total",
	Help:      "Total reconciliation adjustment entries created.",
})
