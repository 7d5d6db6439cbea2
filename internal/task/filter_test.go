package task

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFilterMatches(t *testing.T) {
	tk := validTask()
	tk.Tags = []string{"backend", "urgent"}
	tk.Kind = KindTodo
	tk.Priority = PriorityHigh

	archived := validTask()
	archived.Status = StatusArchived

	tests := []struct {
		name   string
		filter Filter
		record Task
		want   bool
	}{
		{"it matches everything with a zero filter", Filter{}, tk, true},
		{"it matches on kind", Filter{Kind: KindTodo}, tk, true},
		{"it rejects another kind", Filter{Kind: KindIdea}, tk, false},
		{"it matches on priority", Filter{Priority: PriorityHigh}, tk, true},
		{"it rejects another status", Filter{Status: StatusCompleted}, tk, false},
		{"it requires every requested tag", Filter{Tags: []string{"backend", "urgent"}}, tk, true},
		{"it rejects when one tag is missing", Filter{Tags: []string{"backend", "frontend"}}, tk, false},
		{"it matches tags case-insensitively", Filter{Tags: []string{"BACKEND"}}, tk, true},
		{"it excludes archived by default", Filter{}, archived, false},
		{"it includes archived on request", Filter{IncludeArchived: true}, archived, true},
		{"it includes archived for an explicit archived status", Filter{Status: StatusArchived}, archived, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(&tt.record); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTags(t *testing.T) {
	t.Run("it normalizes, dedupes and sorts", func(t *testing.T) {
		got := NormalizeTags([]string{" Zeta", " alpha", "", "ALPHA ", " beta"})
		if diff := cmp.Diff([]string{"alpha", "beta", "zeta"}, got); diff != "" {
			t.Errorf("NormalizeTags mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it returns nil for an all-empty list", func(t *testing.T) {
		if got := NormalizeTags([]string{"", "  "}); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})

	t.Run("it rejects oversized tags and too many tags", func(t *testing.T) {
		if err := ValidateTags([]string{strings.Repeat("x", 65)}); err == nil {
			t.Error("expected error for long tag")
		}
		many := make([]string, 21)
		for i := range many {
			many[i] = string(rune('a'+i%26)) + strings.Repeat("x", i)
		}
		if err := ValidateTags(many); err == nil {
			t.Error("expected error for too many tags")
		}
	})
}

func TestTally(t *testing.T) {
	t.Run("it counts statuses, kinds, priorities and overdue", func(t *testing.T) {
		today := Date{2026, time.March, 10}
		past := Date{2026, time.March, 1}

		a := validTask()
		a.Due = &past
		b := validTask()
		b.Status = StatusInProgress
		b.Kind = KindIdea
		b.Priority = PriorityCritical
		c := validTask()
		c.Status = StatusCompleted
		c.Kind = KindTodo
		c.Due = &past
		d := validTask()
		d.Status = StatusArchived

		got := Tally([]Task{a, b, c, d}, today)
		want := Stats{
			Total:      4,
			Pending:    1,
			InProgress: 1,
			Completed:  1,
			Archived:   1,
			Overdue:    1,
			Tasks:      2,
			Todos:      1,
			Ideas:      1,
			ByPriority: [4]int{0, 3, 0, 1},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Tally mismatch (-want +got):\n%s", diff)
		}
		if got.Open() != 2 {
			t.Errorf("Open() = %d, want 2", got.Open())
		}
	})

	t.Run("it adds stats together", func(t *testing.T) {
		s := Stats{Total: 1, Pending: 1, ByPriority: [4]int{1, 0, 0, 0}}
		s.Add(Stats{Total: 2, Completed: 2, ByPriority: [4]int{0, 0, 2, 0}})
		want := Stats{Total: 3, Pending: 1, Completed: 2, ByPriority: [4]int{1, 0, 2, 0}}
		if diff := cmp.Diff(want, s); diff != "" {
			t.Errorf("Add mismatch (-want +got):\n%s", diff)
		}
	})
}
