package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/leeovery/gittask/internal/frontmatter"
	"github.com/leeovery/gittask/internal/task"
)

const maxSlugLength = 50

// recordName matches "{slug}-{id}.md"; the id is the last dash-separated
// number before the extension.
var recordName = regexp.MustCompile(`^(?:.*-)?(\d+)\.md$`)

// fileSet is one directory scan: record filenames grouped by the id their
// name carries.
type fileSet struct {
	byID map[uint64][]string
}

func (f fileSet) maxID() uint64 {
	var m uint64
	for id := range f.byID {
		m = max(m, id)
	}
	return m
}

// Slug converts a title into a lowercase, dash-separated filename stem.
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		slug = "task"
	}
	return slug
}

// Filename returns the record filename for t.
func Filename(t task.Task) string {
	return fmt.Sprintf("%s-%03d.md", Slug(t.Title), t.ID)
}

// ParseFilenameID extracts the id from a record filename. Hidden files and
// names outside the record pattern are not records.
func ParseFilenameID(name string) (uint64, bool) {
	if strings.HasPrefix(name, ".") {
		return 0, false
	}
	m := recordName.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// scan lists the record files in the store directory. A missing directory
// is an empty store.
func (s *Store) scan() (fileSet, error) {
	set := fileSet{byID: map[uint64][]string{}}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return set, nil
		}
		return fileSet{}, &task.IOError{Path: s.dir, Cause: err}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := ParseFilenameID(e.Name())
		if !ok {
			continue
		}
		set.byID[id] = append(set.byID[id], e.Name())
	}
	return set, nil
}

func parseRecord(path string, data []byte) (task.Task, error) {
	t, err := frontmatter.Unmarshal(data)
	if err != nil {
		return task.Task{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return t, nil
}

// writeRecord encodes t and writes it atomically under its filename.
func (s *Store) writeRecord(t task.Task) error {
	data, err := frontmatter.Marshal(t)
	if err != nil {
		return err
	}
	path := filepath.Join(s.dir, Filename(t))
	if err := writeAtomic(path, data); err != nil {
		return &task.IOError{Path: path, Cause: err}
	}
	s.logger.Debug("atomic write complete", "path", path)
	return nil
}

// readLastID returns the persisted id high-water mark, zero when absent.
func (s *Store) readLastID() (uint64, error) {
	path := filepath.Join(s.dir, LastIDFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, &task.IOError{Path: path, Cause: err}
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, &task.IOError{Path: path, Cause: fmt.Errorf("invalid high-water mark %q", text)}
	}
	return id, nil
}

func (s *Store) writeLastID(id uint64) error {
	path := filepath.Join(s.dir, LastIDFile)
	if err := writeAtomic(path, []byte(strconv.FormatUint(id, 10)+"\n")); err != nil {
		return &task.IOError{Path: path, Cause: err}
	}
	return nil
}

// writeAtomic writes data to a hidden temp file in the target directory,
// fsyncs it, and renames it over path, so readers only ever see complete
// files.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmpFile, err := os.CreateTemp(dir, "."+base+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// WriteAtomic exposes the store's temp-file-and-rename write for other
// files kept alongside stores, such as the project registry.
func WriteAtomic(path string, data []byte) error {
	return writeAtomic(path, data)
}
