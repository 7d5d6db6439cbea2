// Package cache provides a SQLite-based stats cache for one task store. It is
// rebuilt from the Markdown records, which stay the source of truth, whenever
// the store's SHA256 fingerprint changes.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/leeovery/gittask/internal/task"
	"github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
  id INTEGER PRIMARY KEY,
  status TEXT NOT NULL DEFAULT 'pending',
  priority TEXT NOT NULL DEFAULT 'medium',
  kind TEXT NOT NULL DEFAULT 'task',
  due TEXT
);

CREATE TABLE IF NOT EXISTS tags (
  task_id INTEGER NOT NULL,
  tag TEXT NOT NULL,
  PRIMARY KEY (task_id, tag)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
CREATE INDEX IF NOT EXISTS idx_tasks_kind ON tasks(kind);
CREATE INDEX IF NOT EXISTS idx_tags_tag ON tags(tag);
`

// busyTimeoutMS is zero so a reader never waits on another process's
// rebuild; callers count in memory instead. The driver's default applies
// unless it is set explicitly.
const busyTimeoutMS = 0

// Cache wraps a SQLite database used as a stats cache for tasks.
type Cache struct {
	db   *sql.DB
	path string
}

// Source is one record file contributing to a store fingerprint.
type Source struct {
	Name string
	Data []byte
}

// Fingerprint returns the hex-encoded SHA256 over every source's name and
// content, in name order.
func Fingerprint(sources []Source) string {
	sorted := make([]Source, len(sources))
	copy(sorted, sources)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	h := sha256.New()
	for _, s := range sorted {
		fmt.Fprintf(h, "%s\x00%d\x00", s.Name, len(s.Data))
		h.Write(s.Data)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// New opens or creates a SQLite cache database at the given path and
// initializes the schema if not present.
func New(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=%d", dbPath, busyTimeoutMS))
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}

	return &Cache{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Rebuild clears all existing rows and repopulates the cache from the given
// tasks within a single transaction, storing the fingerprint alongside.
func (c *Cache) Rebuild(tasks []task.Task, fingerprint string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning rebuild transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"tags", "tasks", "metadata"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	taskStmt, err := tx.Prepare(`INSERT INTO tasks (id, status, priority, kind, due) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing task insert: %w", err)
	}
	defer taskStmt.Close()

	tagStmt, err := tx.Prepare(`INSERT OR IGNORE INTO tags (task_id, tag) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing tag insert: %w", err)
	}
	defer tagStmt.Close()

	for _, t := range tasks {
		var due *string
		if t.Due != nil {
			s := t.Due.String()
			due = &s
		}
		if _, err := taskStmt.Exec(int64(t.ID), string(t.Status), string(t.Priority), string(t.Kind), due); err != nil {
			return fmt.Errorf("inserting task %d: %w", t.ID, err)
		}
		for _, tag := range t.Tags {
			if _, err := tagStmt.Exec(int64(t.ID), tag); err != nil {
				return fmt.Errorf("inserting tag %d -> %s: %w", t.ID, tag, err)
			}
		}
	}

	if _, err := tx.Exec(`INSERT INTO metadata (key, value) VALUES ('fingerprint', ?)`, fingerprint); err != nil {
		return fmt.Errorf("storing fingerprint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rebuild transaction: %w", err)
	}
	return nil
}

// IsFresh compares the stored fingerprint with the given one.
func (c *Cache) IsFresh(fingerprint string) (bool, error) {
	var stored string
	err := c.db.QueryRow("SELECT value FROM metadata WHERE key='fingerprint'").Scan(&stored)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("querying fingerprint: %w", err)
	}
	return stored == fingerprint, nil
}

// EnsureFresh opens the cache at dbPath, checks freshness against the given
// fingerprint, and rebuilds from load only if stale or missing. If the cache
// file is corrupted, it is deleted, recreated, and rebuilt. A database locked
// by another connection is left alone and reported as an error.
func EnsureFresh(dbPath, fingerprint string, load func() ([]task.Task, error), logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c, err := New(dbPath)
	if err != nil {
		if busy(err) {
			return nil, err
		}
		logger.Warn("cache corrupt or unreadable, recreating", "path", dbPath, "error", err)
		c, err = recreate(dbPath)
		if err != nil {
			return nil, err
		}
	}

	fresh, err := c.IsFresh(fingerprint)
	if err != nil {
		c.Close()
		if busy(err) {
			return nil, err
		}
		logger.Warn("cache query failed, recreating", "path", dbPath, "error", err)
		c, err = recreate(dbPath)
		if err != nil {
			return nil, err
		}
		fresh = false
	}

	if !fresh {
		tasks, err := load()
		if err != nil {
			c.Close()
			return nil, err
		}
		logger.Debug("rebuilding stats cache", "path", dbPath, "tasks", len(tasks))
		if err := c.Rebuild(tasks, fingerprint); err != nil {
			c.Close()
			return nil, fmt.Errorf("rebuilding cache: %w", err)
		}
	}

	return c, nil
}

// busy reports whether err is SQLite refusing access because another
// connection holds the database.
func busy(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
}

// Stats counts the cached tasks matching f. Overdue is judged against today.
func (c *Cache) Stats(f task.Filter, today task.Date) (task.Stats, error) {
	where, args := whereClause(f)
	var s task.Stats

	if err := c.groupCount("status", where, args, func(v string, n int) { s.CountStatus(task.Status(v), n) }); err != nil {
		return task.Stats{}, err
	}
	if err := c.groupCount("kind", where, args, func(v string, n int) { s.CountKind(task.Kind(v), n) }); err != nil {
		return task.Stats{}, err
	}
	if err := c.groupCount("priority", where, args, func(v string, n int) { s.CountPriority(task.Priority(v), n) }); err != nil {
		return task.Stats{}, err
	}
	s.Total = s.Pending + s.InProgress + s.Completed + s.Archived

	overdueArgs := append(append([]any{}, args...), today.String())
	err := c.db.QueryRow(`SELECT COUNT(*) FROM tasks `+where+
		` AND status IN ('pending', 'in-progress') AND due IS NOT NULL AND due < ?`, overdueArgs...).Scan(&s.Overdue)
	if err != nil {
		return task.Stats{}, fmt.Errorf("querying overdue count: %w", err)
	}
	return s, nil
}

func (c *Cache) groupCount(column, where string, args []any, add func(value string, n int)) error {
	rows, err := c.db.Query(`SELECT `+column+`, COUNT(*) FROM tasks `+where+` GROUP BY `+column, args...)
	if err != nil {
		return fmt.Errorf("querying %s counts: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var value string
		var count int
		if err := rows.Scan(&value, &count); err != nil {
			return fmt.Errorf("scanning %s count: %w", column, err)
		}
		add(value, count)
	}
	return rows.Err()
}

// whereClause translates a filter into SQL. It always returns a WHERE clause
// so callers can append further AND conditions.
func whereClause(f task.Filter) (string, []any) {
	conds := []string{"1=1"}
	var args []any
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, string(f.Priority))
	}
	for _, tag := range f.Tags {
		conds = append(conds, "id IN (SELECT task_id FROM tags WHERE tag = ?)")
		args = append(args, task.NormalizeTag(tag))
	}
	if !f.IncludeArchived && f.Status != task.StatusArchived {
		conds = append(conds, "status != 'archived'")
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// recreate removes the cache file at dbPath and creates a fresh database.
func recreate(dbPath string) (*Cache, error) {
	if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing corrupt cache: %w", err)
	}
	c, err := New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("recreating cache: %w", err)
	}
	return c, nil
}

// StoredFingerprint opens the cache at dbPath read-only and returns the
// fingerprint it was last rebuilt for.
func StoredFingerprint(dbPath string) (string, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return "", fmt.Errorf("opening cache database: %w", err)
	}
	defer db.Close()

	var stored string
	if err := db.QueryRow("SELECT value FROM metadata WHERE key='fingerprint'").Scan(&stored); err != nil {
		return "", fmt.Errorf("querying fingerprint: %w", err)
	}
	return stored, nil
}
