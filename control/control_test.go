package control

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loopwire/evcore/evloop"
)

func TestConfigStoreReloadListener(t *testing.T) {
	cs := NewConfigStore()
	fired := make(chan struct{}, 1)
	cs.OnReload(func() { fired <- struct{}{} })

	cs.SetConfig(map[string]any{"idle_timeout_ms": 5000})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("reload listener never fired")
	}

	snap := cs.GetSnapshot()
	if snap["idle_timeout_ms"] != 5000 {
		t.Fatalf("got %v", snap)
	}
}

func TestMetricsObserveManager(t *testing.T) {
	m, err := evloop.NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	reg := NewMetricsRegistry()
	reg.ObserveManager(m)

	snap := reg.GetSnapshot()
	if _, ok := snap["manager.connections"]; !ok {
		t.Fatalf("missing manager.connections in %v", snap)
	}
}

func TestDebugProbesAndPlatform(t *testing.T) {
	m, err := evloop.NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	dp := NewDebugProbes()
	RegisterPlatformProbes(dp, m)

	state := dp.DumpState()
	if _, ok := state["platform.cpus"]; !ok {
		t.Fatalf("missing platform.cpus in %v", state)
	}
}

func TestSQLiteSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.db")
	sink, err := OpenSQLiteSink(path)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	reg := NewMetricsRegistry()
	reg.Set("connections", 3)
	if err := sink.Record(reg, time.Now()); err != nil {
		t.Fatal(err)
	}

	rows, err := sink.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if v, _ := rows[0]["connections"].(float64); v != 3 {
		t.Fatalf("got connections=%v", rows[0]["connections"])
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file missing: %v", err)
	}
}

func TestHotReloadHooksSync(t *testing.T) {
	called := false
	RegisterReloadHook(func() { called = true })
	TriggerHotReloadSync()
	if !called {
		t.Fatal("hook never called")
	}
}

func TestBindManagerTunablesAppliesAndReapplies(t *testing.T) {
	m, err := evloop.NewManager(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	cs := NewConfigStore()
	cs.SetConfig(map[string]any{"idle_timeout_ms": 5000, "read_chunk_bytes": 8192})
	BindManagerTunables(m, cs)

	dp := NewDebugProbes()
	RegisterConfigProbe(dp, cs)
	state := dp.DumpState()
	snap, ok := state["config.snapshot"].(map[string]any)
	if !ok {
		t.Fatalf("expected config.snapshot probe to return a map, got %T", state["config.snapshot"])
	}
	if snap["read_chunk_bytes"] != 8192 {
		t.Fatalf("got %v", snap)
	}

	fired := make(chan struct{}, 1)
	RegisterReloadHook(func() { fired <- struct{}{} })
	cs.SetConfig(map[string]any{"idle_timeout_ms": 9000})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("expected BindManagerTunables's reload listener to fan out through TriggerHotReload")
	}
}
