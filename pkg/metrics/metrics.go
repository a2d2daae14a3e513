// Package metrics keeps in-process counters for reminder scheduling and delivery.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
)

// Metrics tracks reminder pipeline counters.
// It satisfies queue.WorkerMetrics and reminder.SchedulerMetrics.
type Metrics struct {
	mu sync.RWMutex

	scheduled int64
	skipped   int64
	completed int64
	retried   int64
	exhausted int64
	cancelled int64
}

// New creates a new metrics instance
func New() *Metrics {
	return &Metrics{}
}

// IncScheduled counts a reminder enqueued by the scheduler
func (m *Metrics) IncScheduled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduled++
}

// IncSkipped counts a reminder skipped because the appointment was too soon
func (m *Metrics) IncSkipped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped++
}

// IncCompleted counts a reminder delivered and acknowledged
func (m *Metrics) IncCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed++
}

// IncRetried counts a failed attempt that was rescheduled with backoff
func (m *Metrics) IncRetried() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retried++
}

// IncExhausted counts a reminder that ran out of attempts
func (m *Metrics) IncExhausted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exhausted++
}

// IncCancelled counts a pending reminder cancelled by an operator
func (m *Metrics) IncCancelled() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled++
}

// Snapshot returns a copy of all counters
func (m *Metrics) Snapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]int64{
		"reminders_scheduled": m.scheduled,
		"reminders_skipped":   m.skipped,
		"reminders_completed": m.completed,
		"reminders_retried":   m.retried,
		"reminders_exhausted": m.exhausted,
		"reminders_cancelled": m.cancelled,
	}
}

// Handler serves the current snapshot as JSON.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(m.Snapshot())
	})
}
