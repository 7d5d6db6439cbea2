package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leeovery/gittask/internal/task"
)

func sampleList() *TaskList {
	return &TaskList{Tasks: []TaskRow{
		{ID: "1", Title: "Fix login", Status: "pending", Priority: "high", Kind: "task", Due: "2026-04-01", Tags: []string{"backend"}},
		{ID: "12", Title: "Think", Status: "in-progress", Priority: "low", Kind: "idea"},
	}}
}

func sampleDetail() *TaskDetail {
	return &TaskDetail{
		TaskRow: TaskRow{
			ID: "api:3", Title: "Ship release", Status: "completed", Priority: "critical",
			Kind: "todo", Due: "2026-05-01", Tags: []string{"release", "ops"},
		},
		Created:          "2026-03-01T10:00:00Z",
		Updated:          "2026-03-02T11:00:00Z",
		CompletionCommit: "abc1234",
		Description:      "First line.\nSecond line.",
	}
}

func sampleStats() *StatsData {
	s := task.Stats{Total: 5, Pending: 2, InProgress: 1, Completed: 1, Archived: 1, Overdue: 1, Tasks: 3, Todos: 1, Ideas: 1, ByPriority: [4]int{1, 2, 1, 1}}
	return &StatsData{Stats: s}
}

func TestToonFormatter(t *testing.T) {
	t.Run("it implements Formatter interface", func(t *testing.T) {
		var _ Formatter = &ToonFormatter{}
	})

	t.Run("it formats list with count and schema", func(t *testing.T) {
		result := (&ToonFormatter{}).FormatTaskList(sampleList())
		lines := strings.Split(result, "\n")
		if lines[0] != "tasks[2]{id,title,status,priority,kind,due,tags}:" {
			t.Errorf("header = %q", lines[0])
		}
		if !strings.HasPrefix(lines[1], "  1,Fix login,pending,high,task,2026-04-01,backend") {
			t.Errorf("first row = %q", lines[1])
		}
		if !strings.HasPrefix(lines[2], "  12,Think,in-progress,low,idea,") {
			t.Errorf("second row = %q", lines[2])
		}
		if strings.Contains(result, "errors[") {
			t.Error("unexpected errors section")
		}
	})

	t.Run("it formats zero tasks as empty section", func(t *testing.T) {
		got := (&ToonFormatter{}).FormatTaskList(&TaskList{})
		if got != "tasks[0]{id,title,status,priority,kind,due,tags}:\n" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("it appends skipped projects", func(t *testing.T) {
		data := &TaskList{Errors: []ProjectErrorRow{{Path: "/src/gone", Error: "store not found"}}}
		result := (&ToonFormatter{}).FormatTaskList(data)
		if !strings.Contains(result, "errors[1]{path,error}:") {
			t.Errorf("missing errors header in %q", result)
		}
		if !strings.Contains(result, "/src/gone") {
			t.Errorf("missing error path in %q", result)
		}
	})

	t.Run("it escapes commas in titles", func(t *testing.T) {
		data := &TaskList{Tasks: []TaskRow{{ID: "1", Title: "Fix bug, urgent", Status: "pending", Priority: "medium", Kind: "task", Due: "2026-04-01", Tags: []string{"x"}}}}
		lines := strings.Split((&ToonFormatter{}).FormatTaskList(data), "\n")
		if !strings.Contains(lines[1], `"Fix bug, urgent"`) {
			t.Errorf("expected comma in title to be quoted, got %q", lines[1])
		}
	})

	t.Run("it formats detail with optional fields and description", func(t *testing.T) {
		result := (&ToonFormatter{}).FormatTaskDetail(sampleDetail())
		if !strings.HasPrefix(result, "task{id,title,status,priority,kind,tags,due,created,updated,completion_commit}:\n") {
			t.Errorf("unexpected schema in %q", result)
		}
		if !strings.Contains(result, "api:3") {
			t.Error("missing id")
		}
		if !strings.Contains(result, "\ndescription:\n  First line.\n  Second line.\n") {
			t.Errorf("missing description in %q", result)
		}
	})

	t.Run("it omits unset due and commit from the detail schema", func(t *testing.T) {
		d := sampleDetail()
		d.Due, d.CompletionCommit, d.Description = "", "", ""
		result := (&ToonFormatter{}).FormatTaskDetail(d)
		if !strings.HasPrefix(result, "task{id,title,status,priority,kind,tags,created,updated}:\n") {
			t.Errorf("unexpected schema in %q", result)
		}
		if strings.Contains(result, "description") {
			t.Error("unexpected description section")
		}
	})

	t.Run("it formats stats sections", func(t *testing.T) {
		result := (&ToonFormatter{}).FormatStats(sampleStats())
		for _, want := range []string{
			"stats{total,pending,in_progress,completed,archived,overdue}:\n  5,2,1,1,1,1\n",
			"by_kind[3]{kind,count}:\n  task,3\n  todo,1\n  idea,1\n",
			"by_priority[4]{priority,count}:\n  low,1\n  medium,2\n  high,1\n  critical,1\n",
		} {
			if !strings.Contains(result, want) {
				t.Errorf("missing %q in:\n%s", want, result)
			}
		}
		if strings.Contains(result, "projects[") {
			t.Error("single-store stats should have no projects section")
		}
	})

	t.Run("it adds per-project rows to aggregated stats", func(t *testing.T) {
		d := sampleStats()
		d.Projects = []ProjectStatsRow{{Label: "api", Stats: d.Stats}}
		d.Errors = []ProjectErrorRow{{Path: "/src/web", Error: "boom"}}
		result := (&ToonFormatter{}).FormatStats(d)
		if !strings.Contains(result, "projects[1]{project,total,open,completed,overdue}:\n  api,5,3,1,1\n") {
			t.Errorf("missing projects section in:\n%s", result)
		}
		if !strings.Contains(result, "errors[1]{path,error}:") {
			t.Errorf("missing errors section in:\n%s", result)
		}
	})

	t.Run("it formats an empty project list", func(t *testing.T) {
		got := (&ToonFormatter{}).FormatProjects(nil)
		if got != "projects[0]{label,path,open,total,error}:\n" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("it formats projects", func(t *testing.T) {
		result := (&ToonFormatter{}).FormatProjects([]ProjectRow{{Label: "api", Path: "/src/api", Open: 2, Total: 4, Error: "ok?"}})
		if !strings.HasPrefix(result, "projects[1]{label,path,open,total,error}:\n  api,/src/api,2,4,") {
			t.Errorf("got %q", result)
		}
	})
}

func TestTransitionText(t *testing.T) {
	t.Run("it formats a plain transition", func(t *testing.T) {
		got := (&ToonFormatter{}).FormatTransition(&TransitionData{ID: "4", From: "pending", To: "in-progress"})
		if got != "4: pending → in-progress\n" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("it adds the commit and notice", func(t *testing.T) {
		got := (&PrettyFormatter{}).FormatTransition(&TransitionData{ID: "api:4", From: "pending", To: "completed", Commit: "abc1234", Notice: "nothing to see"})
		want := "api:4: pending → completed (commit abc1234)\nnote: nothing to see\n"
		if got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}

func TestPrettyFormatter(t *testing.T) {
	t.Run("it aligns list columns", func(t *testing.T) {
		got := (&PrettyFormatter{}).FormatTaskList(sampleList())
		want := "ID  STATUS       PRI   KIND  DUE         TITLE\n" +
			"1   pending      high  task  2026-04-01  Fix login [backend]\n" +
			"12  in-progress  low   idea  -           Think\n"
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("list mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it reports an empty list", func(t *testing.T) {
		got := (&PrettyFormatter{}).FormatTaskList(&TaskList{})
		if got != "No tasks found.\n" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("it lists skipped projects after the table", func(t *testing.T) {
		data := sampleList()
		data.Errors = []ProjectErrorRow{{Path: "/src/gone", Error: "store not found"}}
		got := (&PrettyFormatter{}).FormatTaskList(data)
		if !strings.HasSuffix(got, "\nSkipped projects:\n  /src/gone: store not found\n") {
			t.Errorf("got %q", got)
		}
	})

	t.Run("it truncates long titles", func(t *testing.T) {
		long := strings.Repeat("x", 60)
		got := truncateTitle(long)
		if len(got) != maxTitleWidth || !strings.HasSuffix(got, "...") {
			t.Errorf("got %q", got)
		}
		if truncateTitle("short") != "short" {
			t.Error("short title changed")
		}
	})

	t.Run("it formats detail as aligned key values", func(t *testing.T) {
		got := (&PrettyFormatter{}).FormatTaskDetail(sampleDetail())
		for _, want := range []string{
			"ID:        api:3\n",
			"Tags:      release, ops\n",
			"Commit:    abc1234\n",
			"\nDescription:\n  First line.\n  Second line.\n",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %q in:\n%s", want, got)
			}
		}
	})

	t.Run("it formats stats blocks", func(t *testing.T) {
		got := (&PrettyFormatter{}).FormatStats(sampleStats())
		for _, want := range []string{
			"Total:  5\n",
			"  Pending:      2\n",
			"  In Progress:  1\n",
			"  idea:         1\n",
			"  medium:       2\n",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %q in:\n%s", want, got)
			}
		}
	})

	t.Run("it formats projects with unavailable ones marked", func(t *testing.T) {
		got := (&PrettyFormatter{}).FormatProjects([]ProjectRow{
			{Label: "alpha", Path: "/src/alpha", Open: 2, Total: 5},
			{Label: "beta", Path: "/src/beta", Error: "store not found"},
		})
		want := "PROJECT  OPEN  TOTAL  PATH\n" +
			"alpha    2     5      /src/alpha\n" +
			"beta     -     -      /src/beta\n" +
			"\nUnavailable:\n  /src/beta: store not found\n"
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("projects mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it reports no projects", func(t *testing.T) {
		if got := (&PrettyFormatter{}).FormatProjects(nil); got != "No projects linked.\n" {
			t.Errorf("got %q", got)
		}
	})
}

func TestJSONFormatter(t *testing.T) {
	decode := func(t *testing.T, s string) any {
		t.Helper()
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			t.Fatalf("invalid JSON %q: %v", s, err)
		}
		return v
	}

	t.Run("it formats an empty list as an array", func(t *testing.T) {
		got := (&JSONFormatter{}).FormatTaskList(&TaskList{})
		if got != "[]\n" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("it always emits tags and omits unset due", func(t *testing.T) {
		got := decode(t, (&JSONFormatter{}).FormatTaskList(sampleList()))
		want := []any{
			map[string]any{"id": "1", "title": "Fix login", "status": "pending", "priority": "high", "kind": "task", "due": "2026-04-01", "tags": []any{"backend"}},
			map[string]any{"id": "12", "title": "Think", "status": "in-progress", "priority": "low", "kind": "idea", "tags": []any{}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("list mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it wraps aggregated lists with errors", func(t *testing.T) {
		data := &TaskList{Errors: []ProjectErrorRow{{Path: "/src/gone", Error: "boom"}}}
		got := decode(t, (&JSONFormatter{}).FormatTaskList(data))
		want := map[string]any{
			"tasks":  []any{},
			"errors": []any{map[string]any{"path": "/src/gone", "error": "boom"}},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it formats detail with snake_case keys", func(t *testing.T) {
		got := decode(t, (&JSONFormatter{}).FormatTaskDetail(sampleDetail())).(map[string]any)
		if got["completion_commit"] != "abc1234" {
			t.Errorf("completion_commit = %v", got["completion_commit"])
		}
		if got["description"] != "First line.\nSecond line." {
			t.Errorf("description = %v", got["description"])
		}
		if got["created"] != "2026-03-01T10:00:00Z" {
			t.Errorf("created = %v", got["created"])
		}
	})

	t.Run("it formats a transition", func(t *testing.T) {
		got := decode(t, (&JSONFormatter{}).FormatTransition(&TransitionData{ID: "2", From: "pending", To: "archived"}))
		want := map[string]any{"id": "2", "from": "pending", "to": "archived"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it formats single-store stats", func(t *testing.T) {
		got := decode(t, (&JSONFormatter{}).FormatStats(sampleStats())).(map[string]any)
		if got["total"] != float64(5) || got["in_progress"] != float64(1) {
			t.Errorf("unexpected counts: %v", got)
		}
		want := map[string]any{"low": float64(1), "medium": float64(2), "high": float64(1), "critical": float64(1)}
		if diff := cmp.Diff(want, got["by_priority"]); diff != "" {
			t.Errorf("by_priority mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it formats aggregated stats with totals projects and errors", func(t *testing.T) {
		d := sampleStats()
		d.Projects = []ProjectStatsRow{}
		got := decode(t, (&JSONFormatter{}).FormatStats(d)).(map[string]any)
		for _, key := range []string{"totals", "projects", "errors"} {
			if _, ok := got[key]; !ok {
				t.Errorf("missing %q", key)
			}
		}
		if diff := cmp.Diff([]any{}, got["errors"]); diff != "" {
			t.Errorf("errors should be an empty array: %s", diff)
		}
	})

	t.Run("it formats projects and messages", func(t *testing.T) {
		got := decode(t, (&JSONFormatter{}).FormatProjects([]ProjectRow{{Label: "api", Path: "/src/api", Open: 1, Total: 2}}))
		want := []any{map[string]any{"label": "api", "path": "/src/api", "open": float64(1), "total": float64(2)}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("projects mismatch (-want +got):\n%s", diff)
		}
		msg := decode(t, (&JSONFormatter{}).FormatMessage("done"))
		if diff := cmp.Diff(map[string]any{"message": "done"}, msg); diff != "" {
			t.Errorf("message mismatch: %s", diff)
		}
	})
}
