// Package gitinfo reads the current HEAD commit of a repository so completions
// can record the commit they happened at.
package gitinfo

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/leeovery/gittask/internal/task"
)

// shortLen is the abbreviated hash length recorded on completed tasks.
const shortLen = 7

// HeadCommit returns the abbreviated HEAD hash of the repository containing
// repoPath. Any failure (git missing, not a repository, unborn HEAD) is
// reported as task.ErrNotAGitRepo wrapping git's own message.
func HeadCommit(ctx context.Context, repoPath string) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if _, err := exec.LookPath("git"); err != nil {
		return "", fmt.Errorf("%w: git not found in PATH", task.ErrNotAGitRepo)
	}

	cmd := exec.CommandContext(ctx, "git", "-C", repoPath, "rev-parse", fmt.Sprintf("--short=%d", shortLen), "HEAD")
	out, err := cmd.Output()
	if err != nil {
		msg := err.Error()
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			msg = strings.TrimSpace(string(ee.Stderr))
		}
		return "", fmt.Errorf("%w: %s", task.ErrNotAGitRepo, msg)
	}

	hash := strings.TrimSpace(string(out))
	if hash == "" {
		return "", task.ErrNotAGitRepo
	}
	return hash, nil
}

// Lookup binds HeadCommit to a repository for use as a task.CommitLookup.
func Lookup(ctx context.Context, repoPath string) task.CommitLookup {
	return func() (string, error) {
		return HeadCommit(ctx, repoPath)
	}
}

// IsRepo reports whether path lies inside a git work tree.
func IsRepo(ctx context.Context, path string) bool {
	cmd := exec.CommandContext(ctx, "git", "-C", path, "rev-parse", "--is-inside-work-tree")
	out, err := cmd.Output()
	return err == nil && strings.TrimSpace(string(out)) == "true"
}
