package doctor

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// tempName matches the hidden files atomic writes rename into place.
var tempName = regexp.MustCompile(`^\..+\.tmp\d*$`)

// TempFileCheck reports temp files left by a write that never finished.
type TempFileCheck struct{}

func (c *TempFileCheck) Run(_ context.Context, storeDir string) []CheckResult {
	const name = "Temp files"
	entries, err := os.ReadDir(storeDir)
	if err != nil {
		return storeNotFoundResult(name, storeDir)
	}

	var stray []string
	for _, e := range entries {
		if !e.IsDir() && tempName.MatchString(e.Name()) {
			stray = append(stray, e.Name())
		}
	}
	if len(stray) == 0 {
		return passed(name)
	}
	return []CheckResult{failed(name, SeverityWarning,
		fmt.Sprintf("%d leftover temp file(s): %s", len(stray), strings.Join(stray, ", ")),
		"Delete them when no gittask process is running")}
}
