// Package cmd implements the wget2 command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/baack/wget2/config"
)

// Exit codes, as wget reports them.
const (
	ExitOK      = 0
	ExitGeneric = 1
	ExitNetwork = 4
	ExitServer  = 8
)

// ExitError carries a process exit code through cobra.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configDir string
	profile   string
	debug     bool
	workers   int
	slowStart int
	progress  string
	engine    string
	limitRate string
	outputDir string
	noClobber bool
	timeout   time.Duration
	userAgent string
}

// app is the state of one command line invocation.
type app struct {
	version string
	flags   globalFlags
	cfg     *config.Config
}

// NewRootCommand builds the wget2 command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:           "wget2",
		Short:         "Parallel downloader with a multi-line progress bar",
		Long:          "wget2 downloads URLs with a pool of workers, drawing one progress line per active worker.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.flags.configDir, "config-dir", "C", "", "config base directory (default "+config.DefaultConfigDir+")")
	f.StringVarP(&a.flags.profile, "profile", "p", "default", "config profile to use")
	f.BoolVarP(&a.flags.debug, "debug", "d", false, "debug verbosity")
	f.IntVarP(&a.flags.workers, "max-threads", "j", 0, "number of download workers")
	f.IntVarP(&a.flags.slowStart, "slow-start", "s", 0, "initial number of workers")
	f.StringVar(&a.flags.progress, "progress", "", "progress display: auto, bar or none")
	f.StringVar(&a.flags.engine, "engine", "", "progress bar engine: classic or pretty")
	f.StringVar(&a.flags.limitRate, "limit-rate", "", "limit the combined download rate, e.g. 500k or 2MB")
	f.StringVarP(&a.flags.outputDir, "directory-prefix", "P", "", "save files to this directory")
	f.BoolVarP(&a.flags.noClobber, "no-clobber", "n", false, "skip downloads of files that already exist")
	f.DurationVarP(&a.flags.timeout, "timeout", "T", 0, "connect and response header timeout")
	f.StringVarP(&a.flags.userAgent, "user-agent", "U", "", "identify as this user agent")

	root.AddCommand(
		a.newGetCommand(),
		a.newStatusCommand(),
		a.newMonitorCommand(),
		a.newLogsCommand(),
		a.newInitCommand(),
		a.newResetDBCommand(),
		a.newBackupDBCommand(),
		a.newImportLogCommand(),
		a.newVersionCommand(),
	)
	return root
}

// loadConfig reads wget2.ini and applies the command line overrides.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.flags.configDir, a.flags.profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fl := cmd.Flags()
	if a.flags.debug {
		cfg.Debug = true
	}
	if fl.Changed("max-threads") {
		// A slow start equal to the old maximum means "no slow start".
		if cfg.SlowStart >= cfg.MaxWorkers || cfg.SlowStart > a.flags.workers {
			cfg.SlowStart = a.flags.workers
		}
		cfg.MaxWorkers = a.flags.workers
	}
	if fl.Changed("slow-start") {
		cfg.SlowStart = a.flags.slowStart
	}
	if a.flags.progress != "" {
		cfg.Progress = a.flags.progress
	}
	if a.flags.engine != "" {
		cfg.ProgressEngine = a.flags.engine
	}
	if a.flags.limitRate != "" {
		rate, err := config.ParseRate(a.flags.limitRate)
		if err != nil {
			return err
		}
		cfg.LimitRate = rate
	}
	if a.flags.outputDir != "" {
		cfg.OutputDir = a.flags.outputDir
	}
	if a.flags.noClobber {
		cfg.NoClobber = true
	}
	if fl.Changed("timeout") {
		cfg.Timeout = a.flags.timeout
	}
	if a.flags.userAgent != "" {
		cfg.UserAgent = a.flags.userAgent
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	config.SetConfig(cfg)
	a.cfg = cfg
	return nil
}

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "wget2 version %s\n", a.version)
		},
	}
}

// Execute runs the command line and returns the process exit code.
// SIGINT and SIGTERM cancel the running command.
func Execute(version string, args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(version)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(os.Stderr, "wget2: %v\n", exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintf(os.Stderr, "wget2: %v\n", err)
	return ExitGeneric
}
