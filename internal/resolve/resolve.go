// Package resolve turns user-supplied task identifiers into a store root and
// a local id, using the project registry for qualified ids.
package resolve

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leeovery/gittask/internal/registry"
	"github.com/leeovery/gittask/internal/store"
	"github.com/leeovery/gittask/internal/task"
)

// ID is a parsed identifier. Label is empty for a plain local id.
type ID struct {
	Label string
	Local uint64
}

// Qualified reports whether the id names a project.
func (id ID) Qualified() bool {
	return id.Label != ""
}

func (id ID) String() string {
	if id.Label == "" {
		return strconv.FormatUint(id.Local, 10)
	}
	return Qualify(id.Label, id.Local)
}

// Qualify renders a label and local id as "label:id".
func Qualify(label string, id uint64) string {
	return label + ":" + strconv.FormatUint(id, 10)
}

// ParseID parses "N" or "label:N", where N is a positive integer. The label
// is everything before the last colon.
func ParseID(raw string) (ID, error) {
	s := strings.TrimSpace(raw)
	label, num := "", s
	if i := strings.LastIndex(s, ":"); i >= 0 {
		label, num = strings.TrimSpace(s[:i]), s[i+1:]
		if label == "" {
			return ID{}, &task.InvalidIDError{Raw: raw}
		}
	}
	n, ok := parsePositive(num)
	if !ok {
		return ID{}, &task.InvalidIDError{Raw: raw}
	}
	return ID{Label: label, Local: n}, nil
}

func parsePositive(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

// ProjectLister is the part of the registry the resolver reads.
type ProjectLister interface {
	Projects() ([]registry.Project, error)
}

// Target is a resolved identifier: the store root to open and the id within it.
type Target struct {
	Root  string
	ID    uint64
	Label string
}

// Display returns the identifier as the user should see it: qualified when it
// came from a labelled project, plain otherwise.
func (t Target) Display() string {
	if t.Label == "" {
		return strconv.FormatUint(t.ID, 10)
	}
	return Qualify(t.Label, t.ID)
}

// ContextRoot returns the root plain ids resolve against: home for the
// global store, otherwise the project discovered upward from workDir.
func ContextRoot(global bool, workDir, home string) (string, error) {
	if global {
		return home, nil
	}
	root, err := store.Discover(workDir, home)
	if err != nil {
		var nf *task.NotFoundError
		if errors.As(err, &nf) {
			return "", fmt.Errorf("not inside a project (no .tasks or .git found from %s); use the global store instead", workDir)
		}
		return "", err
	}
	return root, nil
}

// Resolver resolves identifiers relative to a current context root.
type Resolver struct {
	projects ProjectLister
	root     string
}

// New returns a Resolver. root is the store root plain ids resolve against:
// the current project, or the global home.
func New(projects ProjectLister, root string) *Resolver {
	return &Resolver{projects: projects, root: root}
}

// Resolve parses raw and, for qualified ids, finds the single registered
// project whose label matches, ignoring case.
func (r *Resolver) Resolve(raw string) (Target, error) {
	id, err := ParseID(raw)
	if err != nil {
		return Target{}, err
	}
	if !id.Qualified() {
		return Target{Root: r.root, ID: id.Local}, nil
	}

	project, err := r.Project(id.Label)
	if err != nil {
		return Target{}, err
	}
	return Target{Root: project.Path, ID: id.Local, Label: project.Label}, nil
}

// Project finds the registered project labelled label.
func (r *Resolver) Project(label string) (registry.Project, error) {
	projects, err := r.projects.Projects()
	if err != nil {
		return registry.Project{}, err
	}

	var matches []registry.Project
	for _, p := range projects {
		if strings.EqualFold(p.Label, label) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return registry.Project{}, &task.NotFoundError{Kind: "project", Key: label}
	case 1:
		return matches[0], nil
	}

	candidates := make([]string, len(matches))
	for i, m := range matches {
		candidates[i] = m.Path
	}
	return registry.Project{}, &task.AmbiguousProjectError{Label: label, Candidates: candidates}
}
