package doctor

import "fmt"

const (
	suggestManualFix = "Manual fix required"
	suggestRebuild   = "Run `gittask rebuild` to refresh the cache"
)

// storeNotFoundResult is the failure every record check reports when the
// .tasks directory cannot be read.
func storeNotFoundResult(checkName, storeDir string) []CheckResult {
	return []CheckResult{{
		Name:       checkName,
		Passed:     false,
		Severity:   SeverityError,
		Details:    fmt.Sprintf("%s not found or unreadable", storeDir),
		Suggestion: "Run `gittask init` or check the project path",
	}}
}

func passed(checkName string) []CheckResult {
	return []CheckResult{{Name: checkName, Passed: true}}
}

func failed(checkName string, sev Severity, details, suggestion string) CheckResult {
	return CheckResult{Name: checkName, Passed: false, Severity: sev, Details: details, Suggestion: suggestion}
}
