package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leeovery/gittask/internal/task"
)

// DirName is the per-project store directory.
const DirName = ".tasks"

// Discover walks up from startDir to find the project root: the nearest
// directory holding a .tasks directory or a .git entry. The global root is
// skipped when matching .tasks so the shared store never captures
// unrelated directories beneath it.
func Discover(startDir, globalRoot string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	global := canonical(globalRoot)

	for {
		if dir != global && isDir(filepath.Join(dir, DirName)) {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", &task.NotFoundError{Key: fmt.Sprintf("project root for %s", startDir)}
}

// ignoreFile keeps the lock, high-water mark, cache and temp files out of git.
const ignoreFile = ".gitignore"

var ignoreContent = []byte(lockFile + "\n" + LastIDFile + "\n" + CacheFile + "\n.*.tmp*\n")

// Init creates the .tasks directory under root. It reports false when the
// directory already existed.
func Init(root string) (bool, error) {
	dir := filepath.Join(root, DirName)
	existed := isDir(dir)
	if err := ensureDir(dir); err != nil {
		return false, err
	}
	return !existed, nil
}

// ensureDir creates dir and writes its .gitignore when absent. An existing
// .gitignore is never rewritten.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &task.IOError{Path: dir, Cause: err}
	}
	path := filepath.Join(dir, ignoreFile)
	if _, err := os.Lstat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return &task.IOError{Path: path, Cause: err}
	}
	if err := writeAtomic(path, ignoreContent); err != nil {
		return &task.IOError{Path: path, Cause: err}
	}
	return nil
}

// Canonical returns the absolute, symlink-resolved form of path. Paths that
// do not exist are only made absolute.
func Canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return filepath.Clean(abs), nil
		}
		return "", &task.IOError{Path: abs, Cause: err}
	}
	return resolved, nil
}

func canonical(path string) string {
	if path == "" {
		return ""
	}
	c, err := Canonical(path)
	if err != nil {
		return path
	}
	return c
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
