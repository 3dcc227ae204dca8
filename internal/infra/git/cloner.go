package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/compose-network/evm-bridge/internal/logger"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Repository is a git repository holding Solidity sources.
type Repository struct {
	Name string
	URL  string
	Ref  string // branch or tag
}

// Cloner shallow clones repositories.
type Cloner struct {
	logger *slog.Logger
}

func NewCloner() *Cloner {
	return &Cloner{logger: logger.Named("git_cloner")}
}

// Clone clones repo into destDir/<name> and returns the checkout path. An
// existing checkout is reused as is.
func (c *Cloner) Clone(ctx context.Context, destDir string, repo Repository) (string, error) {
	if repo.Name == "" || repo.URL == "" {
		return "", errors.New("repository name and url are required")
	}

	repoPath := filepath.Join(destDir, repo.Name)

	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil {
		c.logger.With("name", repo.Name, "path", repoPath).Info("repository already cloned, skipping")
		return repoPath, nil
	}

	c.logger.With("name", repo.Name, "url", repo.URL, "ref", repo.Ref).Info("cloning repository")

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	if err := c.clone(ctx, repoPath, repo); err != nil {
		_ = os.RemoveAll(repoPath)
		return "", fmt.Errorf("git clone failed: %w", err)
	}

	c.logger.With("name", repo.Name).Info("repository cloned successfully")

	return repoPath, nil
}

// clone tries Ref as a branch first, then as a tag.
func (c *Cloner) clone(ctx context.Context, repoPath string, repo Repository) error {
	opts := &gogit.CloneOptions{
		URL:          repo.URL,
		Depth:        1,
		SingleBranch: true,
		Progress:     os.Stdout,
	}
	if repo.Ref == "" {
		_, err := gogit.PlainCloneContext(ctx, repoPath, false, opts)
		return err
	}

	opts.ReferenceName = plumbing.NewBranchReferenceName(repo.Ref)
	_, err := gogit.PlainCloneContext(ctx, repoPath, false, opts)
	if err == nil || !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return err
	}

	c.logger.With("ref", repo.Ref).Debug("branch not found, trying tag")
	if err := os.RemoveAll(repoPath); err != nil {
		return err
	}

	opts.ReferenceName = plumbing.NewTagReferenceName(repo.Ref)
	_, err = gogit.PlainCloneContext(ctx, repoPath, false, opts)

	return err
}
