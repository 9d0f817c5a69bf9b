// License: Apache-2.0
//
// Runtime debug handler and probe reflector for internal inspection:
// named, on-demand state dumps (platform CPU count, manager backlog, and
// so on) that don't belong in the steady metrics stream.

package control

import "sync"

// RegisterConfigProbe adds a "config.snapshot" debug probe that reflects
// cs's current key/value contents, so an operator inspecting DumpState can
// see the live Manager tunables (idle_timeout_ms, read_chunk_bytes) a
// BindManagerTunables call is actually using, not just the platform-level
// counters RegisterPlatformProbes exposes.
func RegisterConfigProbe(dp *DebugProbes, cs *ConfigStore) {
	dp.RegisterProbe("config.snapshot", func() any {
		return cs.GetSnapshot()
	})
}

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	mu     sync.RWMutex
	probes map[string]func() any
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{
		probes: make(map[string]func() any),
	}
}

// RegisterProbe inserts a named debug hook.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.probes[name] = fn
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any)
	for k, fn := range dp.probes {
		out[k] = fn()
	}
	return out
}
