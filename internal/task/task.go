// Package task defines the core record model, its closed enum sets, filtering,
// and field validation for the gittask tracker.
package task

import (
	"fmt"
	"strings"
	"time"
)

// Status represents a record's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusArchived}

// ParseStatus parses a status, accepting the legacy spellings
// "inprogress", "in_progress" and "done".
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "in-progress", "inprogress", "in_progress":
		return StatusInProgress, nil
	case "completed", "done":
		return StatusCompleted, nil
	case "archived":
		return StatusArchived, nil
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q (want pending, in-progress, completed or archived)", s)}
}

// IsOpen reports whether the status counts as open work.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress
}

// Priority represents a record's urgency.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// ParsePriority parses a priority, accepting "med" and "crit".
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "medium", "med":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical", "crit":
		return PriorityCritical, nil
	}
	return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q (want low, medium, high or critical)", s)}
}

// Kind distinguishes tasks, todos and ideas.
type Kind string

const (
	KindTask Kind = "task"
	KindTodo Kind = "todo"
	KindIdea Kind = "idea"
)

// Kinds lists every kind.
var Kinds = []Kind{KindTask, KindTodo, KindIdea}

// ParseKind parses a record kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "task":
		return KindTask, nil
	case "todo":
		return KindTodo, nil
	case "idea":
		return KindIdea, nil
	}
	return "", &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q (want task, todo or idea)", s)}
}

// Task is the canonical in-memory form of one record.
type Task struct {
	ID               uint64
	Title            string
	Description      string
	Status           Status
	Priority         Priority
	Kind             Kind
	Tags             []string
	Due              *Date
	Created          time.Time
	Updated          time.Time
	CompletionCommit string
}

// IsOpen reports whether the task is pending or in progress.
func (t *Task) IsOpen() bool {
	return t.Status.IsOpen()
}

// IsOverdue reports whether an open task is past its due date on the given day.
func (t *Task) IsOverdue(today Date) bool {
	return t.IsOpen() && t.Due != nil && t.Due.Before(today)
}

// Draft holds the caller-supplied fields for a new task. Empty enum fields
// take their defaults.
type Draft struct {
	Title       string
	Description string
	Kind        Kind
	Priority    Priority
	Tags        []string
	Due         *Date
}

// Patch holds the fields to change on an existing task. Nil fields are left
// untouched; a non-nil Tags replaces the whole set. ClearDue removes the due date.
type Patch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Due         *Date
	ClearDue    bool
	Tags        []string
	SetTags     bool
}

// NewTask builds a validated task from a draft. The ID is left zero for the
// store to allocate.
func NewTask(d Draft, now time.Time) (Task, error) {
	title := TrimTitle(d.Title)
	if err := ValidateTitle(title); err != nil {
		return Task{}, err
	}

	kind := d.Kind
	if kind == "" {
		kind = KindTask
	}
	if err := ValidateKind(kind); err != nil {
		return Task{}, err
	}

	priority := d.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if err := ValidatePriority(priority); err != nil {
		return Task{}, err
	}

	tags := NormalizeTags(d.Tags)
	if err := ValidateTags(tags); err != nil {
		return Task{}, err
	}

	return Task{
		Title:       title,
		Description: NormalizeDescription(d.Description),
		Status:      StatusPending,
		Priority:    priority,
		Kind:        kind,
		Tags:        tags,
		Due:         d.Due,
		Created:     now,
		Updated:     now,
	}, nil
}

// Apply returns a copy of t with the patch applied and Updated advanced. The
// result is re-validated.
func (p Patch) Apply(t Task, now time.Time) (Task, error) {
	if p.Title != nil {
		t.Title = TrimTitle(*p.Title)
	}
	if p.Description != nil {
		t.Description = NormalizeDescription(*p.Description)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.ClearDue {
		t.Due = nil
	}
	if p.Due != nil {
		d := *p.Due
		t.Due = &d
	}
	if p.SetTags {
		t.Tags = NormalizeTags(p.Tags)
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	t.Updated = NextUpdated(t.Updated, now)
	return t, nil
}

// Validate checks every field against its constraints, including the
// completion commit invariant.
func (t *Task) Validate() error {
	if t.ID == 0 {
		return &ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	if err := ValidateTitle(t.Title); err != nil {
		return err
	}
	if _, err := ParseStatus(string(t.Status)); err != nil || t.Status == "" {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", t.Status)}
	}
	if err := ValidatePriority(t.Priority); err != nil {
		return err
	}
	if err := ValidateKind(t.Kind); err != nil {
		return err
	}
	if err := ValidateTags(t.Tags); err != nil {
		return err
	}
	if t.Updated.Before(t.Created) {
		return &ValidationError{Field: "updated", Reason: "must not be earlier than created"}
	}
	// A completed record may lack a commit when it was completed outside a
	// repository; a commit on any other status is corrupt.
	if t.CompletionCommit != "" && t.Status != StatusCompleted {
		return &ValidationError{Field: "completionCommit", Reason: "must be set only on completed records"}
	}
	return nil
}

// TrimTitle removes leading and trailing whitespace from a title.
func TrimTitle(title string) string {
	return strings.TrimSpace(title)
}

// ValidateTitle checks that a title meets all constraints.
func ValidateTitle(title string) error {
	trimmed := TrimTitle(title)
	if trimmed == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if len(trimmed) > 500 {
		return &ValidationError{Field: "title", Reason: "exceeds maximum length of 500 characters"}
	}
	if strings.ContainsAny(trimmed, "\n\r") {
		return &ValidationError{Field: "title", Reason: "must not contain newlines"}
	}
	return nil
}

// ValidatePriority checks that p is one of the closed priority set.
func ValidatePriority(p Priority) error {
	for _, known := range Priorities {
		if p == known {
			return nil
		}
	}
	return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", p)}
}

// ValidateKind checks that k is one of the closed kind set.
func ValidateKind(k Kind) error {
	for _, known := range Kinds {
		if k == known {
			return nil
		}
	}
	return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", k)}
}

// NormalizeDescription trims blank lines from both ends of a description,
// keeping indentation on the first non-blank line.
func NormalizeDescription(desc string) string {
	lines := strings.Split(strings.ReplaceAll(desc, "\r\n", "\n"), "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	for i := start; i < end; i++ {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.Join(lines[start:end], "\n")
}

// NextUpdated returns the timestamp a mutation should record: now, or one
// microsecond past prev when the clock has not moved beyond it.
func NextUpdated(prev, now time.Time) time.Time {
	now = now.Round(0)
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Microsecond)
}

// FormatTimestamp formats a time as RFC 3339 with nanoseconds and explicit offset.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
