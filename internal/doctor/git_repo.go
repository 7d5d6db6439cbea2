package doctor

import (
	"context"
	"path/filepath"

	"github.com/leeovery/gittask/internal/gitinfo"
)

// GitRepoCheck warns when the project is not inside a git work tree, since
// completions there cannot record a commit.
type GitRepoCheck struct{}

func (c *GitRepoCheck) Run(ctx context.Context, storeDir string) []CheckResult {
	const name = "Git repository"
	root := filepath.Dir(storeDir)
	if gitinfo.IsRepo(ctx, root) {
		return passed(name)
	}
	return []CheckResult{failed(name, SeverityWarning,
		root+" is not inside a git repository; completed tasks will not record a commit",
		"Run `git init` in the project")}
}
