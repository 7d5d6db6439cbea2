// Package doctor runs read-only diagnostic checks over one .tasks directory.
// Every registered check runs; failures never stop later checks.
package doctor

import "context"

// Severity says whether a failed check breaks the store or only looks wrong.
// Errors affect the exit code; warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// CheckResult is one outcome of a check. Passing results carry no Details.
type CheckResult struct {
	Name       string
	Passed     bool
	Severity   Severity
	Details    string
	Suggestion string
}

// Check inspects the store directory and returns one passing result or one
// failing result per problem found.
type Check interface {
	Run(ctx context.Context, storeDir string) []CheckResult
}

// DiagnosticReport holds every result of a run in registration order.
type DiagnosticReport struct {
	Results []CheckResult
}

// HasErrors reports whether any error-severity check failed.
func (r *DiagnosticReport) HasErrors() bool {
	return r.ErrorCount() > 0
}

// ErrorCount returns the number of failed error-severity results.
func (r *DiagnosticReport) ErrorCount() int {
	return r.count(SeverityError)
}

// WarningCount returns the number of failed warning-severity results.
func (r *DiagnosticReport) WarningCount() int {
	return r.count(SeverityWarning)
}

func (r *DiagnosticReport) count(sev Severity) int {
	n := 0
	for _, result := range r.Results {
		if !result.Passed && result.Severity == sev {
			n++
		}
	}
	return n
}

// DiagnosticRunner executes an ordered list of checks.
type DiagnosticRunner struct {
	checks []Check
}

func NewDiagnosticRunner() *DiagnosticRunner {
	return &DiagnosticRunner{}
}

// Register appends a check.
func (d *DiagnosticRunner) Register(check Check) {
	d.checks = append(d.checks, check)
}

// RunAll runs every check against storeDir. The record files are scanned
// once up front and shared with the checks through the context.
func (d *DiagnosticRunner) RunAll(ctx context.Context, storeDir string) DiagnosticReport {
	if _, ok := ctx.Value(RecordsKey).([]RecordFile); !ok {
		if records, err := ScanRecords(storeDir); err == nil {
			ctx = context.WithValue(ctx, RecordsKey, records)
		}
	}

	var results []CheckResult
	for _, check := range d.checks {
		results = append(results, check.Run(ctx, storeDir)...)
	}
	return DiagnosticReport{Results: results}
}

// StoreChecks returns the standard checks in the order they are reported.
// The git check is left out for the shared global store, which lives
// outside any repository.
func StoreChecks(withGit bool) []Check {
	checks := []Check{
		&RecordSyntaxCheck{},
		&RecordNameCheck{},
		&DuplicateIDCheck{},
		&HighWaterMarkCheck{},
		&TempFileCheck{},
		&CacheStalenessCheck{},
	}
	if withGit {
		checks = append(checks, &GitRepoCheck{})
	}
	return checks
}
