package cli

import (
	"path/filepath"

	"github.com/leeovery/gittask/internal/render"
	"github.com/leeovery/gittask/internal/store"
	"github.com/leeovery/gittask/internal/task"
	"github.com/spf13/cobra"
)

func (s *session) statsCmd() *cobra.Command {
	var aggregate bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := task.Filter{IncludeArchived: true}
			if aggregate {
				res, err := s.engine().Stats(cmd.Context(), f)
				if err != nil {
					return err
				}
				s.print(s.fmtr.FormatStats(render.StatsFromAggregate(res)))
				return nil
			}

			st, err := s.currentStore()
			if err != nil {
				return err
			}
			stats, err := st.Stats(f)
			if err != nil {
				return err
			}
			s.print(s.fmtr.FormatStats(&render.StatsData{Stats: stats}))
			return nil
		},
	}
	cmd.Flags().BoolVar(&aggregate, "aggregate", false, "Count across every linked project")
	return cmd
}

// pathArg returns the explicit path argument, or the current project root.
func (s *session) pathArg(args []string) (string, error) {
	if len(args) == 1 {
		if filepath.IsAbs(args[0]) {
			return args[0], nil
		}
		return filepath.Join(s.workDir, args[0]), nil
	}
	return s.projectRoot()
}

// displayPath is path as the registry records it.
func displayPath(path string) string {
	if c, err := store.Canonical(path); err == nil {
		return c
	}
	return path
}

func (s *session) linkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link [path]",
		Short: "Register a project for aggregated queries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := s.pathArg(args)
			if err != nil {
				return err
			}
			added, err := s.registry.Link(path)
			if err != nil {
				return err
			}
			if added {
				s.print(s.fmtr.FormatMessage("Linked project: " + displayPath(path)))
			} else {
				s.print(s.fmtr.FormatMessage("Project already linked: " + displayPath(path)))
			}
			return nil
		},
	}
}

func (s *session) unlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink [path]",
		Short: "Remove a project from the registry",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := s.pathArg(args)
			if err != nil {
				return err
			}
			if err := s.registry.Unlink(path); err != nil {
				return err
			}
			s.print(s.fmtr.FormatMessage("Unlinked project: " + displayPath(path)))
			return nil
		},
	}
}

func (s *session) projectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List linked projects with their task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := s.registry.ListProjects()
			if err != nil {
				return err
			}
			s.print(s.fmtr.FormatProjects(render.ProjectRows(projects)))
			return nil
		},
	}
}
