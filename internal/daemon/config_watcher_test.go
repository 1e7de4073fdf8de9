package daemon

import (
	"context"
	"os"
	"testing"
)

func TestConfigWatcherPerformReload(t *testing.T) {
	d, path := newTestDaemon(t, "before")

	cw, err := NewConfigWatcher(path, d)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer func() { _ = cw.Stop(context.Background()) }()

	updated := `pipeline: after
stages:
  - name: Tests
matrix:
  include:
    - name: unit
      stage: Tests
script:
  - "true"
daemon:
  data_dir: ` + d.Config().Daemon.DataDir + `
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	if err := cw.performReload(t.Context()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if d.Config().Pipeline != "after" {
		t.Fatalf("config not applied, pipeline is %q", d.Config().Pipeline)
	}
}

func TestConfigWatcherRejectsBrokenConfig(t *testing.T) {
	d, path := newTestDaemon(t, "stable")

	cw, err := NewConfigWatcher(path, d)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer func() { _ = cw.Stop(context.Background()) }()

	if err := os.WriteFile(path, []byte("pipeline: broken\nmatrix:\n  include: []\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	if err := cw.performReload(t.Context()); err == nil {
		t.Fatal("expected reload to fail for invalid config")
	}
	if d.Config().Pipeline != "stable" {
		t.Fatal("running config replaced by invalid one")
	}
}

func TestConfigWatcherRejectsDataDirChange(t *testing.T) {
	d, path := newTestDaemon(t, "fixed")

	cw, err := NewConfigWatcher(path, d)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer func() { _ = cw.Stop(context.Background()) }()

	moved := `pipeline: fixed
stages:
  - name: Tests
matrix:
  include:
    - name: unit
      stage: Tests
script:
  - "true"
daemon:
  data_dir: ` + t.TempDir() + `
`
	if err := os.WriteFile(path, []byte(moved), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	if err := cw.performReload(t.Context()); err == nil {
		t.Fatal("expected data_dir change to be rejected")
	}
}

func TestConfigWatcherTriggerReloadCoalesces(t *testing.T) {
	d, path := newTestDaemon(t, "coalesce")

	cw, err := NewConfigWatcher(path, d)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	defer func() { _ = cw.Stop(context.Background()) }()

	cw.triggerReload()
	cw.triggerReload()
	cw.triggerReload()

	if len(cw.reloadChan) != 1 {
		t.Fatalf("expected a single pending reload, got %d", len(cw.reloadChan))
	}
}
