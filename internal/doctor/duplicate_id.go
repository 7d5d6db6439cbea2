package doctor

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// DuplicateIDCheck reports ids held by more than one file. This is what an
// interrupted rename leaves behind; readers use the most recently updated
// copy, so it is a warning.
type DuplicateIDCheck struct{}

func (c *DuplicateIDCheck) Run(ctx context.Context, storeDir string) []CheckResult {
	const name = "ID uniqueness"
	records, err := getRecords(ctx, storeDir)
	if err != nil {
		return storeNotFoundResult(name, storeDir)
	}

	groups := map[uint64][]string{}
	for _, r := range records {
		if r.FileID != 0 {
			groups[r.FileID] = append(groups[r.FileID], r.Name)
		}
	}
	ids := make([]uint64, 0, len(groups))
	for id, names := range groups {
		if len(names) > 1 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var failures []CheckResult
	for _, id := range ids {
		failures = append(failures, failed(name, SeverityWarning,
			fmt.Sprintf("Duplicate ID %d: %s", id, strings.Join(groups[id], ", ")),
			"Remove the stale copy; the most recently updated one is in use"))
	}
	if len(failures) > 0 {
		return failures
	}
	return passed(name)
}
