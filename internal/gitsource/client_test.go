package gitsource

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"git.home.luguber.info/inful/matrixci/internal/config"
)

// initLocalRepo creates a git repository with one commit on master.
func initLocalRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add("README.md"); err != nil {
		t.Fatalf("add: %v", err)
	}
	sig := &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()}
	if _, err := wt.Commit("initial", &git.CommitOptions{Author: sig}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return dir
}

func TestCloneLocalRepository(t *testing.T) {
	src := initLocalRepo(t)
	ws := t.TempDir()

	client := NewClient(ws)
	path, err := client.Clone(t.Context(), &config.RepositoryConfig{URL: src})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if path != filepath.Join(ws, "source") {
		t.Fatalf("unexpected checkout path: %s", path)
	}
	if _, err := os.Stat(filepath.Join(path, "README.md")); err != nil {
		t.Fatalf("expected checkout contents: %v", err)
	}
}

func TestCloneReplacesExistingCheckout(t *testing.T) {
	src := initLocalRepo(t)
	ws := t.TempDir()
	stale := filepath.Join(ws, "source")
	if err := os.MkdirAll(stale, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stale, "stale.txt"), []byte("old"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	client := NewClient(ws)
	path, err := client.Clone(t.Context(), &config.RepositoryConfig{URL: src})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if _, err := os.Stat(filepath.Join(path, "stale.txt")); !os.IsNotExist(err) {
		t.Fatalf("stale checkout contents survived clone")
	}
}

func TestCloneMissingRepository(t *testing.T) {
	client := NewClient(t.TempDir())
	_, err := client.Clone(t.Context(), &config.RepositoryConfig{URL: filepath.Join(t.TempDir(), "missing")})
	if err == nil {
		t.Fatal("expected error for missing repository")
	}
}
