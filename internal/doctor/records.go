package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leeovery/gittask/internal/frontmatter"
	"github.com/leeovery/gittask/internal/store"
	"github.com/leeovery/gittask/internal/task"
)

// RecordFile is one Markdown file found in a .tasks directory.
type RecordFile struct {
	Name string
	// FileID is the id the filename carries; zero when the name has none.
	FileID uint64
	Data   []byte
	// Task is the parsed record, nil when ParseErr is set.
	Task     *task.Task
	ParseErr error
}

// ScanRecords reads every visible .md file in storeDir, in name order.
// Unlike the store it keeps going past records that fail to parse.
func ScanRecords(storeDir string) ([]RecordFile, error) {
	entries, err := os.ReadDir(storeDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", storeDir, err)
	}

	records := []RecordFile{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(storeDir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		rec := RecordFile{Name: name, Data: data}
		rec.FileID, _ = store.ParseFilenameID(name)
		if t, err := frontmatter.Unmarshal(data); err != nil {
			rec.ParseErr = err
		} else {
			rec.Task = &t
		}
		records = append(records, rec)
	}
	return records, nil
}

type recordsKeyType struct{}

// RecordsKey is the context key carrying a pre-scanned []RecordFile.
var RecordsKey = recordsKeyType{}

func getRecords(ctx context.Context, storeDir string) ([]RecordFile, error) {
	if records, ok := ctx.Value(RecordsKey).([]RecordFile); ok {
		return records, nil
	}
	return ScanRecords(storeDir)
}
