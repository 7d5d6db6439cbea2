package task

import (
	"errors"
	"fmt"
	"time"
)

// CommitLookup returns the current HEAD commit hash of the repository the
// record lives in. It returns ErrNotAGitRepo when no commit is available.
type CommitLookup func() (string, error)

// TransitionResult holds the old and new status after a transition.
type TransitionResult struct {
	OldStatus Status
	NewStatus Status
	// Notice is a non-fatal condition met during the transition, such as
	// ErrNotAGitRepo when completing outside a repository.
	Notice error
}

// NoticeText is the notice as users see it. A missing commit always reads as
// ErrNotAGitRepo alone; git's own message stays on Notice for debug logs.
func (r TransitionResult) NoticeText() string {
	switch {
	case r.Notice == nil:
		return ""
	case errors.Is(r.Notice, ErrNotAGitRepo):
		return ErrNotAGitRepo.Error()
	}
	return r.Notice.Error()
}

// Transition moves t to target and returns the new record. Every transition
// between any two states is permitted; the target only decides the side
// effects on CompletionCommit:
//   - into completed, the current HEAD commit is captured;
//   - out of completed, the commit is cleared;
//   - completed to completed keeps the commit already recorded.
//
// When lookup yields no commit the transition still succeeds with an empty
// commit and the result's Notice set to ErrNotAGitRepo. The input record is
// never modified.
func Transition(t Task, target Status, lookup CommitLookup, now time.Time) (Task, TransitionResult, error) {
	if _, err := ParseStatus(string(target)); err != nil || target == "" {
		return Task{}, TransitionResult{}, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", target)}
	}

	result := TransitionResult{OldStatus: t.Status, NewStatus: target}

	switch {
	case target == StatusCompleted && t.Status == StatusCompleted && t.CompletionCommit != "":
		// Already completed with a commit on record.
	case target == StatusCompleted:
		commit, err := headCommit(lookup)
		if err != nil {
			result.Notice = err
		}
		t.CompletionCommit = commit
	default:
		t.CompletionCommit = ""
	}

	t.Status = target
	t.Updated = NextUpdated(t.Updated, now)
	return t, result, nil
}

// headCommit runs the lookup, folding every failure into ErrNotAGitRepo.
func headCommit(lookup CommitLookup) (string, error) {
	if lookup == nil {
		return "", ErrNotAGitRepo
	}
	commit, err := lookup()
	if err != nil {
		if errors.Is(err, ErrNotAGitRepo) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrNotAGitRepo, err)
	}
	if commit == "" {
		return "", ErrNotAGitRepo
	}
	return commit, nil
}
