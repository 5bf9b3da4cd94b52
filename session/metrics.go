package session

import (
	"context"
	"sync"
	"time"
)

// CapabilityMetric records timing and outcome for a single dispatched
// capability call.
type CapabilityMetric struct {
	Capability string        `json:"capability"`
	AgentID    string        `json:"agent_id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Error      bool          `json:"error"`
}

// MetricsSummary aggregates MetricsHook's observations across all calls.
type MetricsSummary struct {
	TotalDispatches int           `json:"total_dispatches"`
	TotalErrors     int           `json:"total_errors"`
	AvgLatency      time.Duration `json:"avg_latency"`
	MaxLatency      time.Duration `json:"max_latency"`
}

// MetricsHook tracks dispatch latency and error rate with a thread-safe
// counter. It implements Hook so it can be attached to a Dispatcher the same
// way LoggingHook is.
type MetricsHook struct {
	mu      sync.Mutex
	calls   []CapabilityMetric
	pending map[string]time.Time
}

// NewMetricsHook creates an empty MetricsHook.
func NewMetricsHook() *MetricsHook {
	return &MetricsHook{pending: make(map[string]time.Time)}
}

func (h *MetricsHook) Before(_ context.Context, evt *DispatchEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pending[metricsKey(evt)] = time.Now()
	return nil
}

func (h *MetricsHook) After(_ context.Context, evt *DispatchEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := metricsKey(evt)
	started, ok := h.pending[key]
	if !ok {
		started = time.Now()
	}
	delete(h.pending, key)

	failed := evt.Result == nil || !evt.Result.Success
	h.calls = append(h.calls, CapabilityMetric{
		Capability: evt.Capability,
		AgentID:    evt.AgentID,
		StartedAt:  started,
		Duration:   time.Since(started),
		Error:      failed,
	})
	return nil
}

// Summary computes the current MetricsSummary over every call observed so far.
func (h *MetricsHook) Summary() MetricsSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	var summary MetricsSummary
	var total time.Duration
	for _, c := range h.calls {
		summary.TotalDispatches++
		if c.Error {
			summary.TotalErrors++
		}
		total += c.Duration
		if c.Duration > summary.MaxLatency {
			summary.MaxLatency = c.Duration
		}
	}
	if summary.TotalDispatches > 0 {
		summary.AvgLatency = total / time.Duration(summary.TotalDispatches)
	}
	return summary
}

func metricsKey(evt *DispatchEvent) string {
	return evt.Capability + "|" + evt.AgentID
}
