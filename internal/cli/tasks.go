package cli

import (
	"bufio"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/leeovery/gittask/internal/render"
	"github.com/leeovery/gittask/internal/store"
	"github.com/leeovery/gittask/internal/task"
	"github.com/spf13/cobra"
)

func (s *session) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the .tasks directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := s.projectRoot()
			if err != nil {
				if s.opts.Global {
					return err
				}
				// Outside any repository the working directory becomes the project.
				root = s.workDir
			}
			created, err := store.Init(root)
			if err != nil {
				return err
			}
			dir := filepath.Join(root, store.DirName)
			if created {
				s.logger.Debug("store created", "dir", dir)
				s.print(s.fmtr.FormatMessage("Initialized task store in " + dir))
			} else {
				s.print(s.fmtr.FormatMessage("Task store already exists: " + dir))
			}
			return nil
		},
	}
}

func (s *session) addCmd() *cobra.Command {
	var (
		description string
		priority    string
		due         string
		tags        []string
	)
	cmd := &cobra.Command{
		Use:   "add <kind> <title>",
		Short: "Add a task, todo or idea",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := task.ParseKind(args[0])
			if err != nil {
				return err
			}
			draft := task.Draft{Title: args[1], Description: description, Kind: kind, Tags: tags}
			if priority != "" {
				if draft.Priority, err = task.ParsePriority(priority); err != nil {
					return err
				}
			}
			if due != "" {
				if draft.Due, err = parseDue(due); err != nil {
					return err
				}
			}

			st, err := s.currentStore()
			if err != nil {
				return err
			}
			created, err := st.Create(draft)
			if err != nil {
				return err
			}

			id := strconv.FormatUint(created.ID, 10)
			if s.opts.Quiet {
				fmt.Fprintln(s.app.Stdout, id)
				return nil
			}
			s.print(s.fmtr.FormatTaskDetail(render.NewTaskDetail(id, created)))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&description, "description", "d", "", "Task description")
	flags.StringVarP(&priority, "priority", "p", "", "Priority (low, medium, high, critical)")
	flags.StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	flags.StringSliceVarP(&tags, "tags", "t", nil, "Tags (comma-separated)")
	return cmd
}

func (s *session) listCmd() *cobra.Command {
	var (
		ff        filterFlags
		aggregate bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}

			if !aggregate && s.opts.Global {
				projects, err := s.registry.Projects()
				if err != nil {
					return err
				}
				aggregate = len(projects) > 0
			}
			if aggregate {
				res, err := s.engine().List(cmd.Context(), f)
				if err != nil {
					return err
				}
				s.print(s.fmtr.FormatTaskList(render.ListFromAggregate(res)))
				return nil
			}

			st, err := s.currentStore()
			if err != nil {
				return err
			}
			tasks, err := st.List(f)
			if err != nil {
				return err
			}
			s.print(s.fmtr.FormatTaskList(render.ListFromTasks(tasks)))
			return nil
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVar(&aggregate, "aggregate", false, "List across every linked project")
	return cmd
}

func (s *session) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, st, err := s.target(args[0])
			if err != nil {
				return err
			}
			t, err := st.Get(target.ID)
			if err != nil {
				return err
			}
			s.print(s.fmtr.FormatTaskDetail(render.NewTaskDetail(target.Display(), t)))
			return nil
		},
	}
}

func (s *session) updateCmd() *cobra.Command {
	var (
		title       string
		description string
		priority    string
		due         string
		clearDue    bool
		tags        []string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			var p task.Patch
			changed := false
			if flags.Changed("title") {
				p.Title, changed = &title, true
			}
			if flags.Changed("description") {
				p.Description, changed = &description, true
			}
			if flags.Changed("priority") {
				prio, err := task.ParsePriority(priority)
				if err != nil {
					return err
				}
				p.Priority, changed = &prio, true
			}
			if flags.Changed("due") {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				p.Due, changed = d, true
			}
			if clearDue {
				p.ClearDue, changed = true, true
			}
			if flags.Changed("tags") {
				p.Tags, p.SetTags, changed = tags, true, true
			}
			if !changed {
				return errors.New("nothing to update: pass at least one of --title, --description, --priority, --due, --clear-due or --tags")
			}

			target, st, err := s.target(args[0])
			if err != nil {
				return err
			}
			updated, err := st.Update(target.ID, p)
			if err != nil {
				return err
			}
			s.print(s.fmtr.FormatTaskDetail(render.NewTaskDetail(target.Display(), updated)))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&title, "title", "", "New title")
	flags.StringVarP(&description, "description", "d", "", "New description")
	flags.StringVarP(&priority, "priority", "p", "", "New priority")
	flags.StringVar(&due, "due", "", "New due date (YYYY-MM-DD)")
	flags.BoolVar(&clearDue, "clear-due", false, "Remove the due date")
	flags.StringSliceVarP(&tags, "tags", "t", nil, "Replace tags (comma-separated)")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")
	return cmd
}

func (s *session) deleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, st, err := s.target(args[0])
			if err != nil {
				return err
			}
			if !force {
				t, err := st.Get(target.ID)
				if err != nil {
					return err
				}
				if !s.confirm(fmt.Sprintf("Delete #%s %q? [y/N] ", target.Display(), t.Title)) {
					fmt.Fprintln(s.app.Stderr, "Cancelled.")
					return nil
				}
			}
			if err := st.Delete(target.ID); err != nil {
				return err
			}
			s.print(s.fmtr.FormatMessage("Deleted #" + target.Display()))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

// confirm writes prompt to stderr and reads a yes/no answer from stdin.
func (s *session) confirm(prompt string) bool {
	fmt.Fprint(s.app.Stderr, prompt)
	line, _ := bufio.NewReader(s.app.Stdin).ReadString('\n')
	response := strings.ToLower(strings.TrimSpace(line))
	return response == "y" || response == "yes"
}

func (s *session) rebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Force a rebuild of the stats cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := s.currentStore()
			if err != nil {
				return err
			}
			count, err := st.RebuildCache()
			if err != nil {
				return err
			}
			s.print(s.fmtr.FormatMessage(fmt.Sprintf("Rebuilt cache: %d tasks", count)))
			return nil
		},
	}
}
