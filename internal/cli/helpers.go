package cli

import (
	"fmt"

	"github.com/leeovery/gittask/internal/resolve"
	"github.com/leeovery/gittask/internal/store"
	"github.com/leeovery/gittask/internal/task"
	"github.com/spf13/cobra"
)

// projectRoot returns the root plain ids resolve against.
func (s *session) projectRoot() (string, error) {
	root, err := resolve.ContextRoot(s.opts.Global, s.workDir, s.cfg.Home)
	if err != nil {
		return "", fmt.Errorf("%w (or pass --global)", err)
	}
	return root, nil
}

func (s *session) openStore(root string) (*store.Store, error) {
	s.logger.Debug("store open", "root", root)
	return store.Open(root, s.storeOptions()...)
}

// currentStore opens the store for the current context.
func (s *session) currentStore() (*store.Store, error) {
	root, err := s.projectRoot()
	if err != nil {
		return nil, err
	}
	return s.openStore(root)
}

// target resolves raw to a store and local id. Qualified ids work outside
// any project; plain ids need the current context.
func (s *session) target(raw string) (resolve.Target, *store.Store, error) {
	root, rootErr := s.projectRoot()
	t, err := resolve.New(s.registry, root).Resolve(raw)
	if err != nil {
		return resolve.Target{}, nil, err
	}
	if t.Root == "" {
		return resolve.Target{}, nil, rootErr
	}
	st, err := s.openStore(t.Root)
	if err != nil {
		return resolve.Target{}, nil, err
	}
	return t, st, nil
}

// filterFlags are the list filters shared by list and stats.
type filterFlags struct {
	kind            string
	status          string
	priority        string
	tags            []string
	includeArchived bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.kind, "kind", "k", "", "Filter by kind (task, todo, idea)")
	flags.StringVarP(&f.status, "status", "s", "", "Filter by status (pending, in-progress, completed, archived)")
	flags.StringVarP(&f.priority, "priority", "p", "", "Filter by priority (low, medium, high, critical)")
	flags.StringSliceVarP(&f.tags, "tags", "t", nil, "Filter by tags, all must match (comma-separated)")
	flags.BoolVarP(&f.includeArchived, "all", "a", false, "Include archived tasks")
}

func (f *filterFlags) filter() (task.Filter, error) {
	out := task.Filter{Tags: f.tags, IncludeArchived: f.includeArchived}
	var err error
	if f.kind != "" {
		if out.Kind, err = task.ParseKind(f.kind); err != nil {
			return task.Filter{}, err
		}
	}
	if f.status != "" {
		if out.Status, err = task.ParseStatus(f.status); err != nil {
			return task.Filter{}, err
		}
	}
	if f.priority != "" {
		if out.Priority, err = task.ParsePriority(f.priority); err != nil {
			return task.Filter{}, err
		}
	}
	return out, nil
}

func parseDue(raw string) (*task.Date, error) {
	d, err := task.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
