package cli

import (
	"path/filepath"

	"github.com/leeovery/gittask/internal/doctor"
	"github.com/leeovery/gittask/internal/store"
	"github.com/spf13/cobra"
)

func (s *session) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the task store for problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := s.projectRoot()
			if err != nil {
				return err
			}

			runner := doctor.NewDiagnosticRunner()
			// The shared store is not expected to live in a repository.
			for _, check := range doctor.StoreChecks(!s.opts.Global) {
				runner.Register(check)
			}
			report := runner.RunAll(cmd.Context(), filepath.Join(root, store.DirName))
			doctor.FormatReport(s.app.Stdout, report)

			if doctor.ExitCode(report) != 0 {
				return errSilent
			}
			return nil
		},
	}
}
