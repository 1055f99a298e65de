package provider

import (
	"sync"
	"time"
)

const healthFailureLimit = 3

// Health tracks request outcomes for a venue so the HTTP health endpoint can
// report whether market data is flowing.
type Health struct {
	mu                  sync.Mutex
	venue               string
	totalRequests       int64
	totalFailures       int64
	consecutiveFailures int
	lastSuccess         time.Time
	avgLatencyMS        float64
}

// HealthSnapshot is a point-in-time copy safe to serialize.
type HealthSnapshot struct {
	Venue               string    `json:"venue"`
	Healthy             bool      `json:"healthy"`
	TotalRequests       int64     `json:"total_requests"`
	TotalFailures       int64     `json:"total_failures"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success"`
	AvgLatencyMS        float64   `json:"avg_latency_ms"`
	BreakerState        string    `json:"breaker_state,omitempty"`
}

func NewHealth(venue string) *Health {
	return &Health{venue: venue}
}

func (h *Health) RecordSuccess(latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.totalRequests++
	h.consecutiveFailures = 0
	h.lastSuccess = time.Now()
	h.observeLatency(latency)
}

func (h *Health) RecordFailure(latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.totalRequests++
	h.totalFailures++
	h.consecutiveFailures++
	h.observeLatency(latency)
}

// observeLatency keeps an exponential moving average; callers hold h.mu.
func (h *Health) observeLatency(latency time.Duration) {
	sample := float64(latency.Milliseconds())
	if h.avgLatencyMS == 0 {
		h.avgLatencyMS = sample
		return
	}
	h.avgLatencyMS = 0.8*h.avgLatencyMS + 0.2*sample
}

func (h *Health) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		Venue:               h.venue,
		Healthy:             h.consecutiveFailures < healthFailureLimit,
		TotalRequests:       h.totalRequests,
		TotalFailures:       h.totalFailures,
		ConsecutiveFailures: h.consecutiveFailures,
		LastSuccess:         h.lastSuccess,
		AvgLatencyMS:        h.avgLatencyMS,
	}
}
