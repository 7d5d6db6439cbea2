// Package store provides the per-project task store: one Markdown record per
// file under a .tasks directory, guarded by an advisory file lock for
// mutations and atomic renames for readers.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"github.com/leeovery/gittask/internal/cache"
	"github.com/leeovery/gittask/internal/gitinfo"
	"github.com/leeovery/gittask/internal/task"
)

const (
	defaultLockTimeout = 5 * time.Second
	lockPollInterval   = 50 * time.Millisecond

	// maxRescans bounds how often a reader rescans after a record vanished
	// mid-read because a concurrent writer renamed it.
	maxRescans = 5

	lockFile = ".lock"
)

// Files kept in the .tasks directory next to the records.
const (
	// LastIDFile holds the highest id ever issued, so deleted ids are not reused.
	LastIDFile = ".last-id"
	// CacheFile is the SQLite stats cache.
	CacheFile = ".cache.db"
)

// Store manages the records of one .tasks directory.
type Store struct {
	root        string
	dir         string
	lockPath    string
	lockTimeout time.Duration
	logger      *slog.Logger
	lookup      task.CommitLookup
	now         func() time.Time
	readFile    func(string) ([]byte, error)
}

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout sets how long a mutation waits for the store lock. The
// default is 5 seconds.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

// WithLogger sets the logger used for lock, write and cache tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCommitLookup replaces the HEAD lookup used when completing tasks.
func WithCommitLookup(fn task.CommitLookup) Option {
	return func(s *Store) {
		s.lookup = fn
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open returns a Store for the project rooted at root. The .tasks directory
// need not exist yet: reads treat it as empty and the first Create makes it.
func Open(root string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving store root %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &task.IOError{Path: abs, Cause: err}
	}
	if !info.IsDir() {
		return nil, &task.IOError{Path: abs, Cause: errors.New("not a directory")}
	}

	dir := filepath.Join(abs, DirName)
	s := &Store{
		root:        abs,
		dir:         dir,
		lockPath:    filepath.Join(dir, lockFile),
		lockTimeout: defaultLockTimeout,
		logger:      slog.New(slog.DiscardHandler),
		lookup:      gitinfo.Lookup(context.Background(), abs),
		now:         time.Now,
		readFile:    os.ReadFile,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the project root the store belongs to.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the .tasks directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Exists reports whether the .tasks directory has been created.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.dir)
	return err == nil && info.IsDir()
}

func (s *Store) clock() time.Time {
	return s.now().Round(0)
}

// Create validates the draft, allocates the next id and writes the record.
func (s *Store) Create(d task.Draft) (task.Task, error) {
	now := s.clock()
	t, err := task.NewTask(d, now)
	if err != nil {
		return task.Task{}, err
	}

	if err := ensureDir(s.dir); err != nil {
		return task.Task{}, err
	}

	unlock, err := s.acquireExclusive()
	if err != nil {
		return task.Task{}, err
	}
	defer unlock()

	files, err := s.scan()
	if err != nil {
		return task.Task{}, err
	}
	hw, err := s.readLastID()
	if err != nil {
		return task.Task{}, err
	}
	t.ID = max(files.maxID(), hw) + 1

	if err := s.writeRecord(t); err != nil {
		return task.Task{}, err
	}
	if err := s.writeLastID(t.ID); err != nil {
		return task.Task{}, err
	}
	s.logger.Debug("task created", "store", s.dir, "id", t.ID)
	return t, nil
}

// Get returns the record with the given id.
func (s *Store) Get(id uint64) (task.Task, error) {
	for attempt := 0; ; attempt++ {
		files, err := s.scan()
		if err != nil {
			return task.Task{}, err
		}
		names := files.byID[id]
		t, _, err := s.load(names, id)
		var nf *task.NotFoundError
		if len(names) > 0 && errors.As(err, &nf) {
			if attempt == maxRescans {
				return task.Task{}, s.unsettled()
			}
			continue
		}
		return t, err
	}
}

// List returns the records matching f in ascending id order. A record that
// cannot be parsed fails the whole listing.
func (s *Store) List(f task.Filter) ([]task.Task, error) {
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	out := make([]task.Task, 0, len(all))
	for i := range all {
		if f.Matches(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Update applies the present fields of p to the record and rewrites it.
func (s *Store) Update(id uint64, p task.Patch) (task.Task, error) {
	var updated task.Task
	err := s.mutate(id, func(t task.Task) (task.Task, error) {
		next, err := p.Apply(t, s.clock())
		if err != nil {
			return task.Task{}, err
		}
		updated = next
		return next, nil
	})
	return updated, err
}

// SetStatus moves the record to target through task.Transition and rewrites
// it. A missing commit on completion is reported in the result's Notice and
// does not fail the call.
func (s *Store) SetStatus(id uint64, target task.Status) (task.Task, task.TransitionResult, error) {
	var (
		updated task.Task
		result  task.TransitionResult
	)
	err := s.mutate(id, func(t task.Task) (task.Task, error) {
		next, res, err := task.Transition(t, target, s.lookup, s.clock())
		if err != nil {
			return task.Task{}, err
		}
		updated, result = next, res
		return next, nil
	})
	if err != nil {
		return task.Task{}, task.TransitionResult{}, err
	}
	if result.Notice != nil {
		s.logger.Debug("completed without commit", "store", s.dir, "id", id, "notice", result.Notice)
	}
	return updated, result, nil
}

// Delete removes the record. The high-water mark is raised to at least id
// first so the id is never allocated again.
func (s *Store) Delete(id uint64) error {
	if !s.Exists() {
		return task.TaskNotFound(id)
	}
	unlock, err := s.acquireExclusive()
	if err != nil {
		return err
	}
	defer unlock()

	files, err := s.scan()
	if err != nil {
		return err
	}
	names := files.byID[id]
	if len(names) == 0 {
		return task.TaskNotFound(id)
	}

	hw, err := s.readLastID()
	if err != nil {
		return err
	}
	if mark := max(hw, files.maxID(), id); mark != hw {
		if err := s.writeLastID(mark); err != nil {
			return err
		}
	}

	for _, name := range names {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &task.IOError{Path: path, Cause: err}
		}
	}
	s.logger.Debug("task deleted", "store", s.dir, "id", id)
	return nil
}

// Stats counts the records matching f through the SQLite cache. Records are
// only parsed when the cache is stale. Any cache failure is logged and the
// counts are computed in memory instead.
func (s *Store) Stats(f task.Filter) (task.Stats, error) {
	snap, err := s.readSnapshot()
	if err != nil {
		return task.Stats{}, err
	}
	today := task.DateOf(s.clock())

	var (
		all       []task.Task
		decoded   bool
		decodeErr error
	)
	load := func() ([]task.Task, error) {
		if !decoded {
			all, decodeErr = s.decode(snap)
			decoded = true
		}
		return all, decodeErr
	}

	if s.Exists() {
		c, cerr := cache.EnsureFresh(filepath.Join(s.dir, CacheFile), cache.Fingerprint(snap.sources()), load, s.logger)
		if cerr == nil {
			stats, qerr := c.Stats(f, today)
			c.Close()
			if qerr == nil {
				return stats, nil
			}
			cerr = qerr
		}
		if decodeErr != nil {
			return task.Stats{}, decodeErr
		}
		s.logger.Warn("stats cache unavailable, counting in memory", "store", s.dir, "error", cerr)
	}

	if _, err := load(); err != nil {
		return task.Stats{}, err
	}
	var matched []task.Task
	for i := range all {
		if f.Matches(&all[i]) {
			matched = append(matched, all[i])
		}
	}
	return task.Tally(matched, today), nil
}

// RebuildCache discards the stats cache and rebuilds it from the records,
// returning the number of records indexed.
func (s *Store) RebuildCache() (int, error) {
	snap, err := s.readSnapshot()
	if err != nil {
		return 0, err
	}
	all, err := s.decode(snap)
	if err != nil {
		return 0, err
	}
	if err := ensureDir(s.dir); err != nil {
		return 0, err
	}
	dbPath := filepath.Join(s.dir, CacheFile)
	if err := os.Remove(dbPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, &task.IOError{Path: dbPath, Cause: err}
	}
	load := func() ([]task.Task, error) { return all, nil }
	c, err := cache.EnsureFresh(dbPath, cache.Fingerprint(snap.sources()), load, s.logger)
	if err != nil {
		return 0, err
	}
	defer c.Close()
	return len(all), nil
}

// mutate runs fn on the current record under the exclusive lock and writes
// the result. When the title change moves the record to a new filename, the
// new file is written before the old one is removed.
func (s *Store) mutate(id uint64, fn func(task.Task) (task.Task, error)) error {
	if !s.Exists() {
		return task.TaskNotFound(id)
	}
	unlock, err := s.acquireExclusive()
	if err != nil {
		return err
	}
	defer unlock()

	files, err := s.scan()
	if err != nil {
		return err
	}
	current, names, err := s.load(files.byID[id], id)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := s.writeRecord(next); err != nil {
		return err
	}

	keep := Filename(next)
	for _, name := range names {
		if name == keep {
			continue
		}
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &task.IOError{Path: path, Cause: err}
		}
		s.logger.Debug("removed superseded record", "store", s.dir, "file", name)
	}
	return nil
}

// acquireExclusive acquires the store lock, polling until the configured
// timeout. It returns an unlock function that must be deferred by the caller.
func (s *Store) acquireExclusive() (unlock func(), err error) {
	s.logger.Debug("acquiring exclusive lock", "path", s.lockPath)
	fl := flock.New(s.lockPath)
	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)

	locked, err := fl.TryLockContext(ctx, lockPollInterval)
	if !locked || err != nil {
		cancel()
		s.logger.Debug("lock acquisition failed", "path", s.lockPath, "error", err)
		return nil, &task.LockTimeoutError{StorePath: s.dir}
	}
	s.logger.Debug("exclusive lock acquired", "path", s.lockPath)

	return func() {
		_ = fl.Unlock()
		cancel()
		s.logger.Debug("exclusive lock released", "path", s.lockPath)
	}, nil
}

// loadAll reads every record, deduplicated by id, in ascending id order.
func (s *Store) loadAll() ([]task.Task, error) {
	snap, err := s.readSnapshot()
	if err != nil {
		return nil, err
	}
	return s.decode(snap)
}

// snapshot holds the raw bytes of every record file, grouped by filename id.
type snapshot struct {
	ids   []uint64
	files map[uint64][]cache.Source
}

func (sn snapshot) sources() []cache.Source {
	var out []cache.Source
	for _, id := range sn.ids {
		out = append(out, sn.files[id]...)
	}
	return out
}

// readSnapshot reads every record file without parsing it. A record renamed
// between the directory scan and the read triggers a rescan; when records
// still vanish after maxRescans the read fails rather than come back short.
func (s *Store) readSnapshot() (snapshot, error) {
	for attempt := 0; ; attempt++ {
		snap, vanished, err := s.readOnce()
		if err != nil || !vanished {
			return snap, err
		}
		if attempt == maxRescans {
			return snapshot{}, s.unsettled()
		}
		s.logger.Debug("record vanished during read, rescanning", "store", s.dir)
	}
}

func (s *Store) readOnce() (snapshot, bool, error) {
	files, err := s.scan()
	if err != nil {
		return snapshot{}, false, err
	}

	ids := make([]uint64, 0, len(files.byID))
	for id := range files.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	snap := snapshot{ids: make([]uint64, 0, len(ids)), files: make(map[uint64][]cache.Source, len(ids))}
	vanished := false
	for _, id := range ids {
		src, err := s.readSources(files.byID[id])
		if err != nil {
			return snapshot{}, false, err
		}
		if len(src) == 0 {
			vanished = true
			continue
		}
		snap.ids = append(snap.ids, id)
		snap.files[id] = src
	}
	return snap, vanished, nil
}

// unsettled is the failure for a read that kept losing records to
// concurrent renames.
func (s *Store) unsettled() error {
	return &task.IOError{Path: s.dir, Cause: errors.New("records kept changing during read, retry")}
}

// decode parses a snapshot into tasks in ascending id order.
func (s *Store) decode(snap snapshot) ([]task.Task, error) {
	tasks := make([]task.Task, 0, len(snap.ids))
	for _, id := range snap.ids {
		t, err := s.newest(snap.files[id], id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// load reads the newest copy of the record with the given id, returning the
// filenames that currently hold it.
func (s *Store) load(names []string, id uint64) (task.Task, []string, error) {
	src, err := s.readSources(names)
	if err != nil {
		return task.Task{}, nil, err
	}
	if len(src) == 0 {
		return task.Task{}, nil, task.TaskNotFound(id)
	}
	t, err := s.newest(src, id)
	if err != nil {
		return task.Task{}, nil, err
	}
	present := make([]string, len(src))
	for i, so := range src {
		present[i] = so.Name
	}
	return t, present, nil
}

// readSources reads the named record files. Files that vanish between
// listing and reading are skipped; an empty result means none survived.
func (s *Store) readSources(names []string) ([]cache.Source, error) {
	var sources []cache.Source
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		data, err := s.readFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, &task.IOError{Path: path, Cause: err}
		}
		sources = append(sources, cache.Source{Name: name, Data: data})
	}
	return sources, nil
}

// newest parses every copy of record id and keeps the one with the latest
// Updated.
func (s *Store) newest(sources []cache.Source, id uint64) (task.Task, error) {
	var (
		best  task.Task
		found bool
	)
	for _, src := range sources {
		path := filepath.Join(s.dir, src.Name)
		t, err := parseRecord(path, src.Data)
		if err != nil {
			return task.Task{}, err
		}
		if t.ID != id {
			return task.Task{}, &task.IOError{Path: path, Cause: fmt.Errorf("record id %d does not match filename id %d", t.ID, id)}
		}
		if !found || t.Updated.After(best.Updated) {
			best, found = t, true
		}
	}
	return best, nil
}
