package doctor

import (
	"context"
	"fmt"

	"github.com/leeovery/gittask/internal/store"
)

// RecordNameCheck compares each record's filename with its contents. A
// Markdown file with no id in its name is ignored by the store, which is
// worth a warning; a filename id that disagrees with the record's own id is
// an error.
type RecordNameCheck struct{}

func (c *RecordNameCheck) Run(ctx context.Context, storeDir string) []CheckResult {
	const name = "Record names"
	records, err := getRecords(ctx, storeDir)
	if err != nil {
		return storeNotFoundResult(name, storeDir)
	}

	var failures []CheckResult
	for _, r := range records {
		switch {
		case r.FileID == 0:
			failures = append(failures, failed(name, SeverityWarning,
				fmt.Sprintf("%s has no id in its name and is ignored", r.Name),
				"Rename it to {slug}-{id}.md or move it out of .tasks"))
		case r.Task != nil && r.Task.ID != r.FileID:
			failures = append(failures, failed(name, SeverityError,
				fmt.Sprintf("%s holds record id %d", r.Name, r.Task.ID),
				fmt.Sprintf("Rename it to %s", store.Filename(*r.Task))))
		}
	}
	if len(failures) > 0 {
		return failures
	}
	return passed(name)
}
