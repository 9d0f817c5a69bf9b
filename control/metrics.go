// Runtime metrics collector: connection counts, tick numbers, and
// whatever else a caller wants to track across Poll iterations, exposed
// as a thread-safe map with dynamic registration.

package control

import (
	"sync"
	"time"

	"github.com/loopwire/evcore/evloop"
)

// MetricsRegistry holds mutable and read-only metrics.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// ObserveManager records the manager's current tick and live connection
// count, for a caller to invoke once per Poll iteration (e.g. right after
// Manager.Poll returns).
func (mr *MetricsRegistry) ObserveManager(m *evloop.Manager) {
	count := 0
	m.Each(func(*evloop.Connection) { count++ })
	mr.Set("manager.tick", m.Tick())
	mr.Set("manager.connections", count)
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}
