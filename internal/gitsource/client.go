package gitsource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// Client clones the configured repository into a workspace so pipeline
// entries execute against a fresh checkout.
type Client struct {
	workspaceDir string
}

// NewClient creates a Git client rooted at the workspace directory.
func NewClient(workspaceDir string) *Client { return &Client{workspaceDir: workspaceDir} }

// Clone clones the repository into <workspace>/source and returns the
// checkout path. Any existing checkout at that path is replaced.
func (c *Client) Clone(ctx context.Context, repo *config.RepositoryConfig) (string, error) {
	repoPath := filepath.Join(c.workspaceDir, "source")
	slog.Debug("Cloning repository", logfields.URL(repo.URL), slog.String("branch", repo.Branch), logfields.Path(repoPath))
	if err := os.RemoveAll(repoPath); err != nil {
		return "", fmt.Errorf("remove existing checkout: %w", err)
	}

	opts := &git.CloneOptions{URL: repo.URL}
	if repo.Branch != "" {
		opts.ReferenceName = plumbing.ReferenceName("refs/heads/" + repo.Branch)
		opts.SingleBranch = true
	}
	if repo.Depth > 0 {
		opts.Depth = repo.Depth
	}
	if repo.Token != "" {
		// Token auth over HTTP(S); the username is ignored by forges but
		// must be non-empty.
		opts.Auth = &githttp.BasicAuth{Username: "token", Password: repo.Token}
	}

	repository, err := git.PlainCloneContext(ctx, repoPath, false, opts)
	if err != nil {
		return "", classifyCloneError(repo.URL, err)
	}

	if ref, herr := repository.Head(); herr == nil {
		slog.Info("Repository cloned", logfields.URL(repo.URL), slog.String("commit", ref.Hash().String()[:8]), logfields.Path(repoPath))
	} else {
		slog.Info("Repository cloned", logfields.URL(repo.URL), logfields.Path(repoPath))
	}
	return repoPath, nil
}

// classifyCloneError wraps underlying go-git errors into typed variants so
// callers can distinguish permanent failures without string parsing.
func classifyCloneError(url string, err error) error {
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password"):
		return &AuthError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return &UnsupportedProtocolError{Op: "clone", URL: url, Err: err}
	default:
		return fmt.Errorf("clone repository %s: %w", url, err)
	}
}
