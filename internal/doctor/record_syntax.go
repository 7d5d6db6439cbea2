package doctor

import (
	"context"
	"fmt"
)

// RecordSyntaxCheck reports every record file whose frontmatter cannot be
// parsed or holds invalid values. Any such file makes list and stats fail.
type RecordSyntaxCheck struct{}

func (c *RecordSyntaxCheck) Run(ctx context.Context, storeDir string) []CheckResult {
	const name = "Record syntax"
	records, err := getRecords(ctx, storeDir)
	if err != nil {
		return storeNotFoundResult(name, storeDir)
	}

	var failures []CheckResult
	for _, r := range records {
		if r.FileID == 0 || r.ParseErr == nil {
			continue
		}
		failures = append(failures, failed(name, SeverityError,
			fmt.Sprintf("%s: %v", r.Name, r.ParseErr), suggestManualFix))
	}
	if len(failures) > 0 {
		return failures
	}
	return passed(name)
}
