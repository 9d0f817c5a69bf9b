// License: Apache-2.0
//
// Thread-safe configuration store with dynamic update and hot-reload
// propagation, for runtime-tunable Manager knobs (idle timeout, read
// chunk size) that a caller wants to change without a restart.

package control

import (
	"sync"
	"time"

	"github.com/loopwire/evcore/evloop"
)

// ConfigStore is a dynamic key/value map with atomic snapshot and listener support.
type ConfigStore struct {
	mu        sync.RWMutex
	config    map[string]any
	listeners []func()
}

// NewConfigStore initializes a new config store with empty data.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		config:    make(map[string]any),
		listeners: make([]func(), 0),
	}
}

// GetSnapshot returns a copy of all config values.
func (cs *ConfigStore) GetSnapshot() map[string]any {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	snap := make(map[string]any, len(cs.config))
	for k, v := range cs.config {
		snap[k] = v
	}
	return snap
}

// SetConfig merges new values and dispatches reload if needed.
func (cs *ConfigStore) SetConfig(newCfg map[string]any) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for k, v := range newCfg {
		cs.config[k] = v
	}
	cs.dispatchReload()
}

// OnReload registers a listener hook called on config changes.
func (cs *ConfigStore) OnReload(fn func()) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}

// dispatchReload invokes all listeners.
func (cs *ConfigStore) dispatchReload() {
	for _, fn := range cs.listeners {
		go fn()
	}
}

// ApplyTunables reads "idle_timeout_ms" and "read_chunk_bytes" out of cs's
// current snapshot and pushes them onto m via SetIdleTimeout/
// SetReadChunkSize. A key that is absent or not a number is left at
// whatever m already has.
func (cs *ConfigStore) ApplyTunables(m *evloop.Manager) {
	snap := cs.GetSnapshot()
	if ms, ok := asInt(snap["idle_timeout_ms"]); ok {
		m.SetIdleTimeout(time.Duration(ms) * time.Millisecond)
	}
	if n, ok := asInt(snap["read_chunk_bytes"]); ok {
		m.SetReadChunkSize(n)
	}
}

// BindManagerTunables applies cs's current idle-timeout/read-chunk knobs to
// m immediately, then registers a reload listener so every later SetConfig
// call re-applies them to m and fans the change out through
// TriggerHotReload, so process-wide listeners (RegisterReloadHook) observe
// a Manager's tunables changing too.
func BindManagerTunables(m *evloop.Manager, cs *ConfigStore) {
	cs.ApplyTunables(m)
	cs.OnReload(func() {
		cs.ApplyTunables(m)
		TriggerHotReload()
	})
}

// asInt accepts the numeric types a caller is likely to hand a ConfigStore
// through SetConfig: a literal int, or a float64 from a decoded JSON config
// file.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
