package cli

import (
	"errors"
	"fmt"

	"github.com/leeovery/gittask/internal/render"
	"github.com/leeovery/gittask/internal/task"
	"github.com/spf13/cobra"
)

func (s *session) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change a task's status",
		Args:  cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) != 1 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			names := make([]string, len(task.Statuses))
			for i, st := range task.Statuses {
				names[i] = string(st)
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := task.ParseStatus(args[1])
			if err != nil {
				return err
			}
			return s.transition(args[0], status)
		},
	}
}

func (s *session) completeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>...",
		Short: "Mark one or more tasks completed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var errs []error
			for _, raw := range args {
				if err := s.transition(raw, task.StatusCompleted); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", raw, err))
				}
			}
			return errors.Join(errs...)
		},
	}
}

// transition resolves raw and moves the task to target, printing the change.
func (s *session) transition(raw string, target task.Status) error {
	t, st, err := s.target(raw)
	if err != nil {
		return err
	}
	updated, res, err := st.SetStatus(t.ID, target)
	if err != nil {
		return err
	}

	data := &render.TransitionData{
		ID:     t.Display(),
		From:   string(res.OldStatus),
		To:     string(res.NewStatus),
		Commit: updated.CompletionCommit,
	}
	if res.Notice != nil {
		s.logger.Debug("transition notice", "id", data.ID, "notice", res.Notice)
		data.Notice = res.NoticeText()
	}
	s.print(s.fmtr.FormatTransition(data))
	return nil
}
