package gitinfo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/leeovery/gittask/internal/task"
	"github.com/leeovery/gittask/internal/testutil"
)

func TestHeadCommit(t *testing.T) {
	ctx := context.Background()

	t.Run("it returns the short HEAD hash", func(t *testing.T) {
		dir, head := testutil.InitCommittedRepo(t)
		got, err := HeadCommit(ctx, dir)
		if err != nil {
			t.Fatalf("HeadCommit: %v", err)
		}
		if got != head {
			t.Errorf("HeadCommit = %q, want %q", got, head)
		}
	})

	t.Run("it resolves from a subdirectory of the work tree", func(t *testing.T) {
		dir, head := testutil.InitCommittedRepo(t)
		sub := filepath.Dir(testutil.WriteFile(t, dir, "a/b/file.txt", "x"))
		got, err := HeadCommit(ctx, sub)
		if err != nil {
			t.Fatalf("HeadCommit: %v", err)
		}
		if got != head {
			t.Errorf("HeadCommit = %q, want %q", got, head)
		}
	})

	t.Run("it reports ErrNotAGitRepo for a plain directory", func(t *testing.T) {
		testutil.RequireGit(t)
		_, err := HeadCommit(ctx, testutil.ResolvedTempDir(t))
		if !errors.Is(err, task.ErrNotAGitRepo) {
			t.Errorf("expected ErrNotAGitRepo, got %v", err)
		}
	})

	t.Run("it reports ErrNotAGitRepo for a repository without commits", func(t *testing.T) {
		dir := testutil.InitRepo(t)
		_, err := HeadCommit(ctx, dir)
		if !errors.Is(err, task.ErrNotAGitRepo) {
			t.Errorf("expected ErrNotAGitRepo, got %v", err)
		}
	})

	t.Run("it adapts to a commit lookup", func(t *testing.T) {
		dir, head := testutil.InitCommittedRepo(t)
		tk := task.Task{ID: 1, Title: "x", Status: task.StatusPending, Priority: task.PriorityMedium, Kind: task.KindTask}
		got, result, err := task.Transition(tk, task.StatusCompleted, Lookup(ctx, dir), tk.Updated)
		if err != nil {
			t.Fatalf("Transition: %v", err)
		}
		if result.Notice != nil || got.CompletionCommit != head {
			t.Errorf("commit %q notice %v, want %q", got.CompletionCommit, result.Notice, head)
		}
	})
}
