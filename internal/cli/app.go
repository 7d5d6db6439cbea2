// Package cli implements the gittask command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/leeovery/gittask/internal/aggregate"
	"github.com/leeovery/gittask/internal/config"
	"github.com/leeovery/gittask/internal/registry"
	"github.com/leeovery/gittask/internal/render"
	"github.com/leeovery/gittask/internal/store"
	"github.com/leeovery/gittask/internal/telemetry"
	"github.com/spf13/cobra"
)

// errSilent ends a command with exit code 1 after it has already reported
// its outcome, so Run prints nothing further.
var errSilent = errors.New("silent failure")

// App is the gittask CLI application.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	Stdin  io.Reader
	// Getwd returns the working directory commands run in.
	Getwd func() (string, error)
	// IsTTY selects pretty output when no format flag is given.
	IsTTY bool
	// Home overrides the gittask home directory. Empty means GITTASK_HOME
	// or the user's home directory.
	Home string
}

// globalOpts holds the persistent flags.
type globalOpts struct {
	Global  bool
	Quiet   bool
	Verbose bool
	Toon    bool
	Pretty  bool
	JSON    bool
}

// session is the per-invocation state built once the flags are parsed.
type session struct {
	app      *App
	opts     globalOpts
	cfg      config.Config
	logger   *slog.Logger
	fmtr     render.Formatter
	registry *registry.Registry
	workDir  string
}

// Run parses args and executes the matching command. args[0] is the program
// name. It returns the process exit code.
func (a *App) Run(args []string) int {
	if a.Stdin == nil {
		a.Stdin = os.Stdin
	}
	if a.Getwd == nil {
		a.Getwd = os.Getwd
	}

	s := &session{app: a}
	root := s.rootCmd()
	root.SetArgs(args[1:])
	root.SetOut(a.Stdout)
	root.SetErr(a.Stderr)
	root.SetIn(a.Stdin)

	if err := root.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(a.Stderr, "Error: %s\n", err)
		}
		return 1
	}
	return 0
}

func (s *session) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gittask",
		Short:         "Git-versioned task management in Markdown files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&s.opts.Global, "global", "g", false, "Use the global task store instead of the current project")
	flags.BoolVarP(&s.opts.Quiet, "quiet", "q", false, "Suppress non-essential output")
	flags.BoolVarP(&s.opts.Verbose, "verbose", "v", false, "Log debug detail to stderr")
	flags.BoolVar(&s.opts.Toon, "toon", false, "Force TOON output")
	flags.BoolVar(&s.opts.Pretty, "pretty", false, "Force human-readable output")
	flags.BoolVar(&s.opts.JSON, "json", false, "Force JSON output")

	root.AddCommand(
		s.initCmd(),
		s.addCmd(),
		s.listCmd(),
		s.showCmd(),
		s.updateCmd(),
		s.statusCmd(),
		s.completeCmd(),
		s.deleteCmd(),
		s.statsCmd(),
		s.linkCmd(),
		s.unlinkCmd(),
		s.projectsCmd(),
		s.doctorCmd(),
		s.rebuildCmd(),
	)
	return root
}

// setup loads configuration and builds the logger, formatter and registry.
func (s *session) setup() error {
	var err error
	if s.app.Home != "" {
		s.cfg, err = config.LoadFrom(s.app.Home)
	} else {
		s.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	s.logger = telemetry.NewCLILogger(s.app.Stderr, s.cfg.LogLevel, s.opts.Verbose)

	format, err := render.ResolveFormat(s.opts.Toon, s.opts.Pretty, s.opts.JSON, s.app.IsTTY)
	if err != nil {
		return err
	}
	s.fmtr = render.New(format)
	s.logger.Debug("format resolved", "format", format)

	s.workDir, err = s.app.Getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}

	s.registry = registry.New(s.cfg.GlobalDir(),
		registry.WithLockTimeout(time.Duration(s.cfg.LockTimeout)),
		registry.WithLogger(s.logger),
	)
	return nil
}

func (s *session) storeOptions() []store.Option {
	return []store.Option{
		store.WithLockTimeout(time.Duration(s.cfg.LockTimeout)),
		store.WithLogger(s.logger),
	}
}

func (s *session) engine() *aggregate.Engine {
	return aggregate.New(s.registry,
		aggregate.WithWorkers(s.cfg.AggregateWorkers),
		aggregate.WithLogger(s.logger),
		aggregate.WithStoreOptions(s.storeOptions()...),
	)
}

// print writes formatted output unless --quiet is set.
func (s *session) print(out string) {
	if !s.opts.Quiet {
		fmt.Fprint(s.app.Stdout, out)
	}
}
