package task

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotAGitRepo reports that no commit could be captured for a completion.
// It is a notice, never a failure: the transition still succeeds.
var ErrNotAGitRepo = errors.New("not a git repository or no commits yet")

// NotFoundError reports a missing task, project, or registry entry.
type NotFoundError struct {
	// Kind names what was looked up: "task", "project" or "registry entry".
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case "task":
		return fmt.Sprintf("task %s not found", e.Key)
	case "":
		return fmt.Sprintf("%s not found", e.Key)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// TaskNotFound builds a NotFoundError for a local task id.
func TaskNotFound(id uint64) *NotFoundError {
	return &NotFoundError{Kind: "task", Key: fmt.Sprintf("#%d", id)}
}

// ValidationError reports a field that failed validation or could not be parsed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// LockTimeoutError reports that a store's exclusive lock could not be
// acquired within the configured wait.
type LockTimeoutError struct {
	StorePath string
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("could not acquire lock on %s - another process may be using gittask, try again", e.StorePath)
}

// AmbiguousProjectError reports a project label shared by several
// registered paths.
type AmbiguousProjectError struct {
	Label      string
	Candidates []string
}

func (e *AmbiguousProjectError) Error() string {
	return fmt.Sprintf("project label %q is ambiguous, matches: %s", e.Label, strings.Join(e.Candidates, ", "))
}

// InvalidIDError reports an identifier outside the id grammar.
type InvalidIDError struct {
	Raw string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("invalid task id %q (want N or project:N)", e.Raw)
}

// ProjectError is a non-fatal failure attributed to one registered project
// during listing or aggregation.
type ProjectError struct {
	Path  string
	Cause error
}

func (e *ProjectError) Error() string {
	return fmt.Sprintf("project %s: %v", e.Path, e.Cause)
}

func (e *ProjectError) Unwrap() error {
	return e.Cause
}

// IOError is a filesystem failure, fatal for the single operation that hit it.
type IOError struct {
	Path  string
	Cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Cause)
}

func (e *IOError) Unwrap() error {
	return e.Cause
}
