package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManager_EphemeralMode(t *testing.T) {
	tempBase := t.TempDir()
	mgr := NewManager(tempBase)

	if err := mgr.Create(); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	wsPath := mgr.GetPath()
	if wsPath == "" {
		t.Fatal("GetPath() returned empty string")
	}

	if !strings.Contains(filepath.Base(wsPath), "matrixci-") {
		t.Errorf("Expected timestamped directory, got: %s", wsPath)
	}

	if _, err := os.Stat(wsPath); os.IsNotExist(err) {
		t.Errorf("Workspace directory does not exist: %s", wsPath)
	}

	// Cleanup should remove directory
	if err := mgr.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}

	if _, err := os.Stat(wsPath); !os.IsNotExist(err) {
		t.Errorf("Workspace directory still exists after cleanup: %s", wsPath)
	}
}

func TestManager_EphemeralPathsAreUnique(t *testing.T) {
	tempBase := t.TempDir()
	a := NewManager(tempBase)
	b := NewManager(tempBase)

	if err := a.Create(); err != nil {
		t.Fatalf("first Create() failed: %v", err)
	}
	if err := b.Create(); err != nil {
		t.Fatalf("second Create() failed: %v", err)
	}
	if a.GetPath() == b.GetPath() {
		t.Fatalf("two ephemeral workspaces share the path %s", a.GetPath())
	}

	marker := filepath.Join(b.GetPath(), "checkout.txt")
	if err := os.WriteFile(marker, []byte("live"), 0o600); err != nil {
		t.Fatalf("failed to create marker file: %v", err)
	}

	// Cleaning up one workspace must not touch a concurrent run's checkout.
	if err := a.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(marker); os.IsNotExist(err) {
		t.Errorf("sibling workspace content removed by Cleanup()")
	}
}

func TestManager_PersistentMode(t *testing.T) {
	tempBase := t.TempDir()
	mgr := NewPersistentManager(tempBase, "working")

	if err := mgr.Create(); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	wsPath := mgr.GetPath()
	expectedPath := filepath.Join(tempBase, "working")
	if wsPath != expectedPath {
		t.Errorf("Expected path %s, got: %s", expectedPath, wsPath)
	}

	markerFile := filepath.Join(wsPath, "marker.txt")
	if err := os.WriteFile(markerFile, []byte("persistent"), 0o600); err != nil {
		t.Fatalf("Failed to create marker file: %v", err)
	}

	// Cleanup must NOT remove directory in persistent mode
	if err := mgr.Cleanup(); err != nil {
		t.Fatalf("Cleanup() failed: %v", err)
	}
	if _, err := os.Stat(markerFile); os.IsNotExist(err) {
		t.Errorf("Marker file was removed from persistent workspace")
	}
}

func TestManager_PersistentModeSurvivesRecreate(t *testing.T) {
	tempBase := t.TempDir()
	mgr := NewPersistentManager(tempBase, "working")
	if err := mgr.Create(); err != nil {
		t.Fatalf("First Create() failed: %v", err)
	}

	markerFile := filepath.Join(mgr.GetPath(), "marker.txt")
	if err := os.WriteFile(markerFile, []byte("test"), 0o600); err != nil {
		t.Fatalf("Failed to create marker file: %v", err)
	}

	mgr2 := NewPersistentManager(tempBase, "working")
	if err := mgr2.Create(); err != nil {
		t.Fatalf("Second Create() failed: %v", err)
	}
	if _, err := os.Stat(markerFile); os.IsNotExist(err) {
		t.Errorf("Marker file was removed by second Create()")
	}
	if mgr2.GetPath() != mgr.GetPath() {
		t.Errorf("Second manager has different path: %s vs %s", mgr2.GetPath(), mgr.GetPath())
	}
}

func TestManager_CreateSubdir(t *testing.T) {
	mgr := NewManager(t.TempDir())
	if _, err := mgr.CreateSubdir("source"); err == nil {
		t.Fatal("expected error before Create()")
	}
	if err := mgr.Create(); err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	sub, err := mgr.CreateSubdir("source")
	if err != nil {
		t.Fatalf("CreateSubdir() failed: %v", err)
	}
	if filepath.Dir(sub) != mgr.GetPath() {
		t.Errorf("subdir %s not inside workspace %s", sub, mgr.GetPath())
	}
}
