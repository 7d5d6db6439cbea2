// Package testutil provides shared test helpers for the gittask project.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// RequireGit skips the test when no git binary is on PATH.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// Git runs git in dir and returns its trimmed combined output, failing the
// test on error. Author and committer identity come from the environment so
// commits work on machines without a global git config.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=Test",
		"GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=Test",
		"GIT_COMMITTER_EMAIL=test@example.com",
		"GIT_CONFIG_NOSYSTEM=1",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out))
}

// InitRepo creates an empty git repository in a fresh temp dir and returns
// its resolved path. HEAD is unborn until Commit is called.
func InitRepo(t *testing.T) string {
	t.Helper()
	RequireGit(t)
	dir := ResolvedTempDir(t)
	Git(t, dir, "init", "-q")
	return dir
}

// Commit writes a file and commits it, returning the short (7 char) hash.
func Commit(t *testing.T, dir, msg string) string {
	t.Helper()
	name := filepath.Join(dir, "README.md")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", name, err)
	}
	if _, err := f.WriteString(msg + "\n"); err != nil {
		f.Close()
		t.Fatalf("write %s: %v", name, err)
	}
	f.Close()
	Git(t, dir, "add", ".")
	Git(t, dir, "commit", "-q", "-m", msg)
	return Git(t, dir, "rev-parse", "--short=7", "HEAD")
}

// InitCommittedRepo is InitRepo followed by one commit; it returns the repo
// path and the short hash of HEAD.
func InitCommittedRepo(t *testing.T) (dir, head string) {
	t.Helper()
	dir = InitRepo(t)
	return dir, Commit(t, dir, "initial")
}

// ResolvedTempDir returns t.TempDir with symlinks resolved, so paths compare
// equal to canonicalized ones (macOS /var -> /private/var).
func ResolvedTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolving temp dir: %v", err)
	}
	return dir
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
