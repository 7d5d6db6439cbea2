package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leeovery/gittask/internal/store"
)

// HighWaterMarkCheck verifies the persisted last-issued id. An unreadable
// value blocks task creation; a value behind the largest record id means a
// deleted id could be issued again.
type HighWaterMarkCheck struct{}

func (c *HighWaterMarkCheck) Run(ctx context.Context, storeDir string) []CheckResult {
	const name = "ID high-water mark"
	records, err := getRecords(ctx, storeDir)
	if err != nil {
		return storeNotFoundResult(name, storeDir)
	}

	var maxID uint64
	for _, r := range records {
		maxID = max(maxID, r.FileID)
	}

	path := filepath.Join(storeDir, store.LastIDFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if maxID == 0 {
			return passed(name)
		}
		return []CheckResult{failed(name, SeverityWarning,
			fmt.Sprintf("%s is missing", store.LastIDFile),
			"It is recreated by the next add")}
	}
	if err != nil {
		return []CheckResult{failed(name, SeverityError, err.Error(), suggestManualFix)}
	}

	text := strings.TrimSpace(string(data))
	last, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return []CheckResult{failed(name, SeverityError,
			fmt.Sprintf("%s holds %q, not an id", store.LastIDFile, text),
			fmt.Sprintf("Write the largest id ever issued (at least %d) to %s", maxID, store.LastIDFile))}
	}
	if last < maxID {
		return []CheckResult{failed(name, SeverityWarning,
			fmt.Sprintf("%s is %d but record %d exists", store.LastIDFile, last, maxID),
			"It is raised by the next add")}
	}
	return passed(name)
}
