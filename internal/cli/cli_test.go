package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leeovery/gittask/internal/store"
	"github.com/leeovery/gittask/internal/testutil"
)

// testEnv is an isolated gittask home plus a project directory with an
// initialized store.
type testEnv struct {
	home    string
	project string
}

func setupEnv(t *testing.T) testEnv {
	t.Helper()
	base := testutil.ResolvedTempDir(t)
	env := testEnv{home: filepath.Join(base, "home"), project: filepath.Join(base, "alpha")}
	for _, dir := range []string{env.home, env.project} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := store.Init(env.project); err != nil {
		t.Fatal(err)
	}
	return env
}

// addProject creates another initialized project beside the env's one.
func (e testEnv) addProject(t *testing.T, name string) string {
	t.Helper()
	root := filepath.Join(filepath.Dir(e.project), name)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Init(root); err != nil {
		t.Fatal(err)
	}
	return root
}

// runIn runs a gittask command in dir with the given stdin.
func (e testEnv) runIn(t *testing.T, dir, stdin string, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var stdoutBuf, stderrBuf bytes.Buffer
	app := &App{
		Stdout: &stdoutBuf,
		Stderr: &stderrBuf,
		Stdin:  strings.NewReader(stdin),
		Getwd:  func() (string, error) { return dir, nil },
		Home:   e.home,
	}
	code = app.Run(append([]string{"gittask"}, args...))
	return stdoutBuf.String(), stderrBuf.String(), code
}

// run runs a command in the env's project.
func (e testEnv) run(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	return e.runIn(t, e.project, "", args...)
}

// mustRun runs a command that is expected to succeed and returns stdout.
func (e testEnv) mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	stdout, stderr, code := e.runIn(t, dir, "", args...)
	if code != 0 {
		t.Fatalf("gittask %s: exit %d, stderr %q", strings.Join(args, " "), code, stderr)
	}
	return stdout
}

func decodeJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("invalid JSON %q: %v", s, err)
	}
	return v
}

type listedTask struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Status   string   `json:"status"`
	Priority string   `json:"priority"`
	Kind     string   `json:"kind"`
	Due      string   `json:"due"`
	Tags     []string `json:"tags"`
}

func listIDs(tasks []listedTask) []string {
	ids := []string{}
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestInit(t *testing.T) {
	t.Run("it creates .tasks in a directory outside any repository", func(t *testing.T) {
		env := setupEnv(t)
		dir := filepath.Join(filepath.Dir(env.project), "fresh")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		stdout := env.mustRun(t, dir, "--pretty", "init")
		if !strings.HasPrefix(stdout, "Initialized task store in ") {
			t.Errorf("stdout = %q", stdout)
		}
		if info, err := os.Stat(filepath.Join(dir, store.DirName)); err != nil || !info.IsDir() {
			t.Errorf(".tasks not created: %v", err)
		}
	})

	t.Run("it reports an existing store", func(t *testing.T) {
		env := setupEnv(t)
		stdout := env.mustRun(t, env.project, "--pretty", "init")
		if !strings.HasPrefix(stdout, "Task store already exists: ") {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("it initializes the global store", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "-g", "init")
		if _, err := os.Stat(filepath.Join(env.home, store.DirName)); err != nil {
			t.Errorf("global .tasks not created: %v", err)
		}
	})
}

func TestAddAndShow(t *testing.T) {
	t.Run("it adds a task and shows it", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "todo", "Write docs", "-d", "All of them", "-p", "high", "--due", "2026-05-01", "-t", "Docs,API")

		got := decodeJSON[map[string]any](t, env.mustRun(t, env.project, "--json", "show", "1"))
		want := map[string]any{
			"id": "1", "title": "Write docs", "status": "pending", "priority": "high", "kind": "todo",
			"due": "2026-05-01", "tags": []any{"api", "docs"}, "description": "All of them",
		}
		for key, w := range want {
			if diff := cmp.Diff(w, got[key]); diff != "" {
				t.Errorf("%s mismatch (-want +got):\n%s", key, diff)
			}
		}
		if _, err := os.Stat(filepath.Join(env.project, store.DirName, "write-docs-001.md")); err != nil {
			t.Errorf("record file missing: %v", err)
		}
	})

	t.Run("it prints only the id when quiet", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "First")
		stdout := env.mustRun(t, env.project, "-q", "add", "idea", "Second")
		if stdout != "2\n" {
			t.Errorf("stdout = %q, want %q", stdout, "2\n")
		}
	})

	t.Run("it rejects an unknown kind", func(t *testing.T) {
		env := setupEnv(t)
		_, stderr, code := env.run(t, "add", "chore", "Nope")
		if code != 1 {
			t.Errorf("exit code = %d, want 1", code)
		}
		if !strings.HasPrefix(stderr, "Error: invalid kind") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("it rejects a bad due date", func(t *testing.T) {
		env := setupEnv(t)
		_, stderr, code := env.run(t, "add", "task", "Dated", "--due", "tomorrow")
		if code != 1 || !strings.Contains(stderr, "invalid due") {
			t.Errorf("code %d, stderr %q", code, stderr)
		}
	})

	t.Run("it fails to show a missing task", func(t *testing.T) {
		env := setupEnv(t)
		_, stderr, code := env.run(t, "show", "9")
		if code != 1 || !strings.Contains(stderr, "task #9 not found") {
			t.Errorf("code %d, stderr %q", code, stderr)
		}
	})

	t.Run("it rejects malformed ids", func(t *testing.T) {
		env := setupEnv(t)
		_, stderr, code := env.run(t, "show", "abc")
		if code != 1 || !strings.Contains(stderr, `invalid task id "abc"`) {
			t.Errorf("code %d, stderr %q", code, stderr)
		}
	})

	t.Run("it needs a project or --global for plain ids", func(t *testing.T) {
		env := setupEnv(t)
		outside := filepath.Join(filepath.Dir(env.project), "loose")
		if err := os.MkdirAll(outside, 0o755); err != nil {
			t.Fatal(err)
		}
		_, stderr, code := env.runIn(t, outside, "", "add", "task", "Lost")
		if code != 1 || !strings.Contains(stderr, "not inside a project") || !strings.Contains(stderr, "--global") {
			t.Errorf("code %d, stderr %q", code, stderr)
		}
	})
}

func TestList(t *testing.T) {
	setup := func(t *testing.T) testEnv {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "Fix login", "-t", "backend")
		env.mustRun(t, env.project, "add", "todo", "Buy milk")
		env.mustRun(t, env.project, "add", "task", "Old thing")
		env.mustRun(t, env.project, "status", "3", "archived")
		return env
	}

	t.Run("it lists in id order without archived", func(t *testing.T) {
		env := setup(t)
		got := decodeJSON[[]listedTask](t, env.mustRun(t, env.project, "--json", "list"))
		if diff := cmp.Diff([]string{"1", "2"}, listIDs(got)); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it includes archived with -a", func(t *testing.T) {
		env := setup(t)
		got := decodeJSON[[]listedTask](t, env.mustRun(t, env.project, "--json", "list", "-a"))
		if diff := cmp.Diff([]string{"1", "2", "3"}, listIDs(got)); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it filters by kind tag and status", func(t *testing.T) {
		env := setup(t)
		tests := []struct {
			args []string
			want []string
		}{
			{[]string{"-k", "todo"}, []string{"2"}},
			{[]string{"-t", "BACKEND"}, []string{"1"}},
			{[]string{"-s", "archived"}, []string{"3"}},
			{[]string{"-p", "critical"}, []string{}},
		}
		for _, tt := range tests {
			args := append([]string{"--json", "list"}, tt.args...)
			got := decodeJSON[[]listedTask](t, env.mustRun(t, env.project, args...))
			if diff := cmp.Diff(tt.want, listIDs(got)); diff != "" {
				t.Errorf("list %v mismatch (-want +got):\n%s", tt.args, diff)
			}
		}
	})

	t.Run("it renders an aligned table with --pretty", func(t *testing.T) {
		env := setup(t)
		stdout := env.mustRun(t, env.project, "--pretty", "list")
		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		if len(lines) != 3 || !strings.HasPrefix(lines[0], "ID  STATUS") {
			t.Errorf("unexpected table:\n%s", stdout)
		}
	})

	t.Run("it defaults to TOON when not a terminal", func(t *testing.T) {
		env := setup(t)
		stdout := env.mustRun(t, env.project, "list")
		if !strings.HasPrefix(stdout, "tasks[2]{") {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("it rejects conflicting format flags", func(t *testing.T) {
		env := setupEnv(t)
		_, stderr, code := env.run(t, "--json", "--pretty", "list")
		if code != 1 || !strings.Contains(stderr, "multiple format flags") {
			t.Errorf("code %d, stderr %q", code, stderr)
		}
	})
}

func TestUpdate(t *testing.T) {
	t.Run("it applies only the given fields and renames the file", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "Old title", "-p", "low", "-t", "a")
		env.mustRun(t, env.project, "update", "1", "--title", "New title", "-t", "b,c")

		got := decodeJSON[listedTask](t, env.mustRun(t, env.project, "--json", "show", "1"))
		want := listedTask{ID: "1", Title: "New title", Status: "pending", Priority: "low", Kind: "task", Tags: []string{"b", "c"}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("task mismatch (-want +got):\n%s", diff)
		}
		dir := filepath.Join(env.project, store.DirName)
		if _, err := os.Stat(filepath.Join(dir, "new-title-001.md")); err != nil {
			t.Errorf("renamed record missing: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "old-title-001.md")); !os.IsNotExist(err) {
			t.Errorf("old record still present: %v", err)
		}
	})

	t.Run("it clears the due date", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "Dated", "--due", "2026-01-01")
		env.mustRun(t, env.project, "update", "1", "--clear-due")
		got := decodeJSON[listedTask](t, env.mustRun(t, env.project, "--json", "show", "1"))
		if got.Due != "" {
			t.Errorf("due = %q, want empty", got.Due)
		}
	})

	t.Run("it requires at least one field", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "Untouched")
		_, stderr, code := env.run(t, "update", "1")
		if code != 1 || !strings.Contains(stderr, "nothing to update") {
			t.Errorf("code %d, stderr %q", code, stderr)
		}
	})
}

func TestStatusAndComplete(t *testing.T) {
	t.Run("it completes status names for the second argument", func(t *testing.T) {
		env := setupEnv(t)
		stdout := env.mustRun(t, env.project, "__complete", "status", "1", "")
		if !strings.HasPrefix(stdout, "pending\nin-progress\ncompleted\narchived\n") {
			t.Errorf("stdout = %q", stdout)
		}
	})

	t.Run("it completes outside a repository with a notice", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "Ship")
		stdout := env.mustRun(t, env.project, "--pretty", "complete", "1")
		want := "1: pending → completed\nnote: not a git repository or no commits yet\n"
		if stdout != want {
			t.Errorf("stdout = %q, want %q", stdout, want)
		}
	})

	t.Run("it records the HEAD commit inside a repository", func(t *testing.T) {
		testutil.RequireGit(t)
		env := setupEnv(t)
		repo, head := testutil.InitCommittedRepo(t)
		env.mustRun(t, repo, "add", "task", "Ship")
		stdout := env.mustRun(t, repo, "--pretty", "status", "1", "done")
		if stdout != "1: pending → completed (commit "+head+")\n" {
			t.Errorf("stdout = %q", stdout)
		}
		got := decodeJSON[map[string]any](t, env.mustRun(t, repo, "--json", "show", "1"))
		if got["completion_commit"] != head {
			t.Errorf("completion_commit = %v, want %s", got["completion_commit"], head)
		}
	})

	t.Run("it clears the commit when reopened", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "Reopen me")
		env.mustRun(t, env.project, "complete", "1")
		env.mustRun(t, env.project, "status", "1", "pending")
		got := decodeJSON[map[string]any](t, env.mustRun(t, env.project, "--json", "show", "1"))
		if got["status"] != "pending" {
			t.Errorf("status = %v", got["status"])
		}
		if _, ok := got["completion_commit"]; ok {
			t.Error("completion_commit should be cleared")
		}
	})

	t.Run("it completes every resolvable id and reports the rest", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "One")
		env.mustRun(t, env.project, "add", "task", "Two")
		_, stderr, code := env.run(t, "complete", "1", "7", "2")
		if code != 1 || !strings.Contains(stderr, "7: task #7 not found") {
			t.Errorf("code %d, stderr %q", code, stderr)
		}
		got := decodeJSON[[]listedTask](t, env.mustRun(t, env.project, "--json", "list", "-s", "completed"))
		if diff := cmp.Diff([]string{"1", "2"}, listIDs(got)); diff != "" {
			t.Errorf("completed ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it rejects an unknown status", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "One")
		_, stderr, code := env.run(t, "status", "1", "blocked")
		if code != 1 || !strings.Contains(stderr, "invalid status") {
			t.Errorf("code %d, stderr %q", code, stderr)
		}
	})
}

func TestDelete(t *testing.T) {
	t.Run("it deletes after confirmation", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "Doomed")
		stdout, stderr, code := env.runIn(t, env.project, "y\n", "--pretty", "delete", "1")
		if code != 0 {
			t.Fatalf("exit %d, stderr %q", code, stderr)
		}
		if !strings.Contains(stderr, `Delete #1 "Doomed"? [y/N] `) {
			t.Errorf("stderr = %q", stderr)
		}
		if stdout != "Deleted #1\n" {
			t.Errorf("stdout = %q", stdout)
		}
		if _, _, code := env.run(t, "show", "1"); code != 1 {
			t.Error("task still present")
		}
	})

	t.Run("it keeps the task when declined", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "Survivor")
		_, stderr, code := env.runIn(t, env.project, "n\n", "delete", "1")
		if code != 0 || !strings.HasSuffix(stderr, "Cancelled.\n") {
			t.Errorf("code %d, stderr %q", code, stderr)
		}
		env.mustRun(t, env.project, "show", "1")
	})

	t.Run("it skips the prompt with --force and never reuses the id", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "One")
		env.mustRun(t, env.project, "add", "task", "Two")
		env.mustRun(t, env.project, "delete", "2", "-f")
		stdout := env.mustRun(t, env.project, "-q", "add", "task", "Three")
		if stdout != "3\n" {
			t.Errorf("new id = %q, want 3", stdout)
		}
	})
}

func TestStatsAndRebuild(t *testing.T) {
	t.Run("it counts every status including archived", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "One", "-p", "high")
		env.mustRun(t, env.project, "add", "idea", "Two")
		env.mustRun(t, env.project, "status", "2", "archived")

		got := decodeJSON[map[string]any](t, env.mustRun(t, env.project, "--json", "stats"))
		for key, want := range map[string]float64{"total": 2, "pending": 1, "archived": 1} {
			if got[key] != want {
				t.Errorf("%s = %v, want %v", key, got[key], want)
			}
		}
	})

	t.Run("it rebuilds the cache", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "One")
		env.mustRun(t, env.project, "add", "task", "Two")
		stdout := env.mustRun(t, env.project, "--pretty", "rebuild")
		if stdout != "Rebuilt cache: 2 tasks\n" {
			t.Errorf("stdout = %q", stdout)
		}
		if _, err := os.Stat(filepath.Join(env.project, store.DirName, store.CacheFile)); err != nil {
			t.Errorf("cache missing: %v", err)
		}
	})
}

func TestProjects(t *testing.T) {
	t.Run("it links lists and unlinks projects", func(t *testing.T) {
		env := setupEnv(t)
		beta := env.addProject(t, "beta")

		if stdout := env.mustRun(t, env.project, "--pretty", "link"); stdout != "Linked project: "+env.project+"\n" {
			t.Errorf("link stdout = %q", stdout)
		}
		if stdout := env.mustRun(t, env.project, "--pretty", "link", env.project); stdout != "Project already linked: "+env.project+"\n" {
			t.Errorf("relink stdout = %q", stdout)
		}
		env.mustRun(t, env.project, "link", "../beta")

		type project struct {
			Label string `json:"label"`
			Path  string `json:"path"`
			Open  int    `json:"open"`
			Total int    `json:"total"`
		}
		got := decodeJSON[[]project](t, env.mustRun(t, env.project, "--json", "projects"))
		want := []project{{Label: "alpha", Path: env.project}, {Label: "beta", Path: beta}}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("projects mismatch (-want +got):\n%s", diff)
		}

		env.mustRun(t, env.project, "unlink", beta)
		got = decodeJSON[[]project](t, env.mustRun(t, env.project, "--json", "projects"))
		if len(got) != 1 {
			t.Errorf("projects after unlink = %v", got)
		}
	})

	t.Run("it fails to unlink an unknown path", func(t *testing.T) {
		env := setupEnv(t)
		_, stderr, code := env.run(t, "unlink")
		if code != 1 || !strings.Contains(stderr, "not found") {
			t.Errorf("code %d, stderr %q", code, stderr)
		}
	})
}

func TestAggregation(t *testing.T) {
	setup := func(t *testing.T) (testEnv, string) {
		env := setupEnv(t)
		beta := env.addProject(t, "beta")
		env.mustRun(t, env.project, "add", "task", "Alpha one")
		env.mustRun(t, beta, "add", "task", "Beta one")
		env.mustRun(t, beta, "add", "todo", "Beta two")
		env.mustRun(t, env.project, "link")
		env.mustRun(t, beta, "link")
		return env, beta
	}

	t.Run("it aggregates global listing across linked projects", func(t *testing.T) {
		env, _ := setup(t)
		got := decodeJSON[[]listedTask](t, env.mustRun(t, env.home, "-g", "--json", "list"))
		if diff := cmp.Diff([]string{"alpha:1", "beta:1", "beta:2"}, listIDs(got)); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it lists the global store itself when nothing is linked", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.home, "-g", "add", "idea", "Someday")
		got := decodeJSON[[]listedTask](t, env.mustRun(t, env.home, "-g", "--json", "list"))
		if diff := cmp.Diff([]string{"1"}, listIDs(got)); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it aggregates from a project with --aggregate", func(t *testing.T) {
		env, _ := setup(t)
		got := decodeJSON[[]listedTask](t, env.mustRun(t, env.project, "--json", "list", "--aggregate", "-k", "todo"))
		if diff := cmp.Diff([]string{"beta:2"}, listIDs(got)); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("it resolves qualified ids case-insensitively from anywhere", func(t *testing.T) {
		env, beta := setup(t)
		got := decodeJSON[listedTask](t, env.mustRun(t, env.project, "--json", "show", "BETA:2"))
		if got.ID != "beta:2" || got.Title != "Beta two" {
			t.Errorf("show = %+v", got)
		}
		env.mustRun(t, env.home, "-g", "complete", "beta:1")
		local := decodeJSON[listedTask](t, env.mustRun(t, beta, "--json", "show", "1"))
		if local.Status != "completed" {
			t.Errorf("beta:1 status = %q", local.Status)
		}
	})

	t.Run("it reports unknown project labels", func(t *testing.T) {
		env, _ := setup(t)
		_, stderr, code := env.run(t, "show", "gamma:1")
		if code != 1 || !strings.Contains(stderr, `project "gamma" not found`) {
			t.Errorf("code %d, stderr %q", code, stderr)
		}
	})

	t.Run("it skips a broken project and still totals the rest", func(t *testing.T) {
		env, beta := setup(t)
		if err := os.RemoveAll(filepath.Join(beta, store.DirName)); err != nil {
			t.Fatal(err)
		}
		stdout, _, code := env.runIn(t, env.home, "", "-g", "--json", "stats", "--aggregate")
		if code != 0 {
			t.Fatalf("exit code = %d", code)
		}
		got := decodeJSON[struct {
			Totals struct {
				Total int `json:"total"`
			} `json:"totals"`
			Errors []struct {
				Path string `json:"path"`
			} `json:"errors"`
		}](t, stdout)
		if got.Totals.Total != 1 {
			t.Errorf("total = %d, want 1", got.Totals.Total)
		}
		if len(got.Errors) != 1 || got.Errors[0].Path != beta {
			t.Errorf("errors = %+v", got.Errors)
		}
	})
}

func TestDoctor(t *testing.T) {
	t.Run("it passes a healthy store", func(t *testing.T) {
		env := setupEnv(t)
		env.mustRun(t, env.project, "add", "task", "Fine")
		stdout, _, code := env.run(t, "doctor")
		if code != 0 {
			t.Errorf("exit code = %d, output:\n%s", code, stdout)
		}
		if !strings.Contains(stdout, "✓ Record syntax: OK") {
			t.Errorf("output:\n%s", stdout)
		}
	})

	t.Run("it fails on a corrupt record without an error line", func(t *testing.T) {
		env := setupEnv(t)
		testutil.WriteFile(t, filepath.Join(env.project, store.DirName), "broken-001.md", "no frontmatter here\n")
		stdout, stderr, code := env.run(t, "doctor")
		if code != 1 {
			t.Errorf("exit code = %d, want 1", code)
		}
		if !strings.Contains(stdout, "✗ Record syntax: broken-001.md") {
			t.Errorf("output:\n%s", stdout)
		}
		if strings.Contains(stderr, "Error:") {
			t.Errorf("stderr = %q", stderr)
		}
	})
}
