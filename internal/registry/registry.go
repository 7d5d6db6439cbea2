// Package registry persists the ordered list of project roots whose stores
// take part in aggregation, and checks the health of each one on listing.
package registry

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/leeovery/gittask/internal/store"
	"github.com/leeovery/gittask/internal/task"
)

const (
	// FileName is the registry file inside the global store directory.
	FileName = ".projects"

	lockFileName       = ".projects.lock"
	defaultLockTimeout = 5 * time.Second
	lockPollInterval   = 50 * time.Millisecond
)

// Project is one registered project root.
type Project struct {
	Path  string
	Label string
	// Health is filled in by ListProjects and never persisted.
	Health Health
}

// Health describes a project's store at listing time: counts on
// success, or the failure that prevented reading it.
type Health struct {
	Open  int
	Total int
	Err   error
}

// OK reports whether the store was read successfully.
func (p Health) OK() bool {
	return p.Err == nil
}

// Registry reads and writes the registry file.
type Registry struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLockTimeout sets how long Link and Unlink wait for the registry lock.
func WithLockTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.lockTimeout = d
	}
}

// WithLogger sets the logger used for lock and write tracing.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Registry stored in globalDir, the shared .tasks directory.
func New(globalDir string, opts ...Option) *Registry {
	r := &Registry{
		path:        filepath.Join(globalDir, FileName),
		lockPath:    filepath.Join(globalDir, lockFileName),
		lockTimeout: defaultLockTimeout,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.path
}

// Label derives a project label from its path: the last path component.
func Label(path string) string {
	base := filepath.Base(filepath.Clean(path))
	if base == "." || base == string(filepath.Separator) {
		return path
	}
	return base
}

// Link registers path. It reports whether the path was newly added; linking
// an already registered path is a no-op.
func (r *Registry) Link(path string) (bool, error) {
	canonical, err := store.Canonical(path)
	if err != nil {
		return false, err
	}

	added := false
	err = r.update(func(paths []string) ([]string, error) {
		for _, p := range paths {
			if p == canonical {
				return nil, nil
			}
		}
		added = true
		return append(paths, canonical), nil
	})
	if err != nil {
		return false, err
	}
	if added {
		r.logger.Debug("project linked", "path", canonical)
	}
	return added, nil
}

// Unlink removes path from the registry, failing with NotFoundError when it
// is not registered.
func (r *Registry) Unlink(path string) error {
	canonical, err := store.Canonical(path)
	if err != nil {
		return err
	}
	// A moved or deleted project may only match by its literal form.
	literal, _ := filepath.Abs(path)

	err = r.update(func(paths []string) ([]string, error) {
		out := make([]string, 0, len(paths))
		for _, p := range paths {
			if p == canonical || p == literal {
				continue
			}
			out = append(out, p)
		}
		if len(out) == len(paths) {
			return nil, &task.NotFoundError{Kind: "registry entry", Key: canonical}
		}
		return out, nil
	})
	if err == nil {
		r.logger.Debug("project unlinked", "path", canonical)
	}
	return err
}

// Projects returns the registered projects in registration order, without
// probing them.
func (r *Registry) Projects() ([]Project, error) {
	paths, err := r.read()
	if err != nil {
		return nil, err
	}
	projects := make([]Project, len(paths))
	for i, p := range paths {
		projects[i] = Project{Path: p, Label: Label(p)}
	}
	return projects, nil
}

// ListProjects returns the registered projects with fresh health each. A
// failed check is recorded on its entry and never fails the listing.
func (r *Registry) ListProjects() ([]Project, error) {
	projects, err := r.Projects()
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].Health = checkHealth(projects[i].Path, r.logger)
		r.logger.Debug("project checked", "path", projects[i].Path, "health", projects[i].Health.String())
	}
	return projects, nil
}

// checkHealth opens the store under root read-only and counts its open and
// total records. A missing project or store directory is a failed check.
func checkHealth(root string, logger *slog.Logger) Health {
	s, err := OpenExisting(root, store.WithLogger(logger))
	if err != nil {
		return Health{Err: err}
	}
	tasks, err := s.List(task.Filter{IncludeArchived: true})
	if err != nil {
		return Health{Err: &task.ProjectError{Path: root, Cause: err}}
	}
	p := Health{Total: len(tasks)}
	for i := range tasks {
		if tasks[i].IsOpen() {
			p.Open++
		}
	}
	return p
}

// OpenExisting opens the store of a registered project, failing with a
// ProjectError when the project or its .tasks directory is gone.
func OpenExisting(root string, opts ...store.Option) (*store.Store, error) {
	s, err := store.Open(root, opts...)
	if err != nil {
		return nil, &task.ProjectError{Path: root, Cause: err}
	}
	if !s.Exists() {
		return nil, &task.ProjectError{Path: root, Cause: &task.NotFoundError{Kind: "store", Key: s.Dir()}}
	}
	return s, nil
}

// read loads the registry file. A missing file is an empty registry; blank
// lines and repeats are dropped.
func (r *Registry) read() ([]string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &task.IOError{Path: r.path, Cause: err}
	}

	var paths []string
	seen := map[string]bool{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || seen[line] {
			continue
		}
		seen[line] = true
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, &task.IOError{Path: r.path, Cause: err}
	}
	return paths, nil
}

// update re-reads the registry under the exclusive lock, applies fn and
// writes the result atomically. A nil slice from fn means no change.
func (r *Registry) update(fn func([]string) ([]string, error)) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return &task.IOError{Path: filepath.Dir(r.path), Cause: err}
	}

	unlock, err := r.acquireExclusive()
	if err != nil {
		return err
	}
	defer unlock()

	paths, err := r.read()
	if err != nil {
		return err
	}
	next, err := fn(paths)
	if err != nil || next == nil {
		return err
	}

	var buf bytes.Buffer
	for _, p := range next {
		buf.WriteString(p)
		buf.WriteByte('\n')
	}
	if err := store.WriteAtomic(r.path, buf.Bytes()); err != nil {
		return &task.IOError{Path: r.path, Cause: err}
	}
	r.logger.Debug("registry written", "path", r.path, "projects", len(next))
	return nil
}

func (r *Registry) acquireExclusive() (unlock func(), err error) {
	fl := flock.New(r.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), r.lockTimeout)

	locked, err := fl.TryLockContext(ctx, lockPollInterval)
	if !locked || err != nil {
		cancel()
		return nil, &task.LockTimeoutError{StorePath: r.path}
	}

	return func() {
		_ = fl.Unlock()
		cancel()
	}, nil
}

// String renders health for logs and plain output.
func (p Health) String() string {
	if p.Err != nil {
		return fmt.Sprintf("error: %v", p.Err)
	}
	return fmt.Sprintf("%d open / %d total", p.Open, p.Total)
}
