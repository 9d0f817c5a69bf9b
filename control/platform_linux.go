//go:build linux
// +build linux

package control

import (
	"runtime"

	"github.com/loopwire/evcore/evloop"
)

// RegisterPlatformProbes registers the Linux-specific debug probes: CPU
// count and, for a given Manager, its live connection count and current
// tick. These probes only read Manager state; they never mutate it.
func RegisterPlatformProbes(dp *DebugProbes, m *evloop.Manager) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("manager.tick", func() any {
		return m.Tick()
	})
	dp.RegisterProbe("manager.connections", func() any {
		count := 0
		m.Each(func(*evloop.Connection) { count++ })
		return count
	})
}
