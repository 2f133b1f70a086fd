// Package bootstrap ensures a directory is a git-annex repository before
// the pipeline starts addurl-ing into it, and commits the result
// afterwards. Ported from ensure_annex_repo and the commit step of
// _examples/original_source/src/main.rs, with behavior pinned to the six
// scenarios in tests/ensure_annex_repo.rs.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gamdam-go/gamdam/internal/cmdutil"
)

// EnsureAnnexRepo makes dir usable as a git-annex repository:
//
//   - dir is created (with any missing parents) if it doesn't exist yet.
//   - if dir, or an ancestor of dir, is already inside a git working tree,
//     that existing repository is reused rather than creating a nested one.
//   - git-annex init is run if the resolved repository isn't annex-enabled
//     yet (detected by the absence of a .git/annex directory).
//
// It returns the absolute path of the git working tree to operate in
// (which may be an ancestor of dir, not dir itself).
func EnsureAnnexRepo(ctx context.Context, logger *slog.Logger, dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("bootstrap: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("bootstrap: create %s: %w", abs, err)
	}

	toplevel, err := cmdutil.Output(ctx, logger, abs, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		logger.Info("initializing new git repository", "dir", abs)
		if err := cmdutil.Run(ctx, logger, abs, "git", "init"); err != nil {
			return "", fmt.Errorf("bootstrap: git init: %w", err)
		}
		toplevel = abs
	}

	gitDir, err := cmdutil.Output(ctx, logger, toplevel, "git", "rev-parse", "--git-dir")
	if err != nil {
		return "", fmt.Errorf("bootstrap: git rev-parse --git-dir: %w", err)
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(toplevel, gitDir)
	}

	if _, err := os.Stat(filepath.Join(gitDir, "annex")); os.IsNotExist(err) {
		logger.Info("initializing git-annex", "dir", toplevel)
		if err := cmdutil.Run(ctx, logger, toplevel, "git-annex", "init"); err != nil {
			return "", fmt.Errorf("bootstrap: git-annex init: %w", err)
		}
	}

	return toplevel, nil
}

// CommitIfNeeded stages everything in repoDir and commits with message,
// skipping the commit entirely (and logging why) when there's nothing
// staged after `git add` — which happens whenever every file this run
// downloaded was already present at identical content.
func CommitIfNeeded(ctx context.Context, logger *slog.Logger, repoDir, message string) error {
	if err := cmdutil.Run(ctx, logger, repoDir, "git", "add", "."); err != nil {
		return fmt.Errorf("bootstrap: git add: %w", err)
	}

	if err := cmdutil.Run(ctx, logger, repoDir, "git", "diff", "--cached", "--quiet"); err == nil {
		logger.Info("nothing to commit")
		return nil
	}

	if err := cmdutil.Run(ctx, logger, repoDir, "git", "commit", "-m", message); err != nil {
		return fmt.Errorf("bootstrap: git commit: %w", err)
	}
	return nil
}
