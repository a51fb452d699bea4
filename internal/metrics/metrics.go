package metrics

import (
	"sync"
	"time"
)

// Metrics is a small in-process collector for run counters, gauges, timings
// and component health. The watch command exposes it over HTTP.
type Metrics struct {
	mu        sync.RWMutex
	counters  map[string]int64
	gauges    map[string]int64
	timers    map[string]*timer
	health    map[string]bool
	startTime time.Time
}

type timer struct {
	Count       int64 `json:"count"`
	TotalTimeMs int64 `json:"total_time_ms"`
	LastTimeMs  int64 `json:"last_time_ms"`
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		counters:  make(map[string]int64),
		gauges:    make(map[string]int64),
		timers:    make(map[string]*timer),
		health:    make(map[string]bool),
		startTime: time.Now(),
	}
}

// IncrementCounterBy increments a counter by the specified value
func (m *Metrics) IncrementCounterBy(name string, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
}

// SetGauge sets a gauge to a specific value
func (m *Metrics) SetGauge(name string, value int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// RecordTimer records a timing measurement
func (m *Metrics) RecordTimer(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[name]
	if !ok {
		t = &timer{}
		m.timers[name] = t
	}
	t.Count++
	t.TotalTimeMs += d.Milliseconds()
	t.LastTimeMs = d.Milliseconds()
}

// SetHealth sets the health status of a component
func (m *Metrics) SetHealth(component string, healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health[component] = healthy
}

// GetHealthChecks returns all health checks
func (m *Metrics) GetHealthChecks() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	checks := make(map[string]bool, len(m.health))
	for name, healthy := range m.health {
		checks[name] = healthy
	}
	return checks
}

// GetAllMetrics returns all metrics in a structured format
func (m *Metrics) GetAllMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, v := range m.counters {
		counters[name] = v
	}
	gauges := make(map[string]int64, len(m.gauges))
	for name, v := range m.gauges {
		gauges[name] = v
	}
	timers := make(map[string]timer, len(m.timers))
	for name, t := range m.timers {
		timers[name] = *t
	}
	health := make(map[string]bool, len(m.health))
	for name, v := range m.health {
		health[name] = v
	}

	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"counters":       counters,
		"gauges":         gauges,
		"timers":         timers,
		"health_checks":  health,
	}
}
