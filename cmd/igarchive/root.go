package main

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"igarchive/pkg/config"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/logger"
	"igarchive/pkg/ui"
)

var (
	// Version information, set with -ldflags at build time
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// Exit codes
const (
	exitOK        = 0
	exitFatal     = 1
	exitUsage     = 2
	exitRetryable = 75 // EX_TEMPFAIL
)

// globalOptions holds the persistent flags shared by every command
type globalOptions struct {
	configFile string
	logLevel   string
	dataDir    string
	noColor    bool
	quiet      bool
}

// exitError carries the process exit code of a failed command.
// reported is set when the command already printed the failure.
type exitError struct {
	code     int
	err      error
	reported bool
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(format string, args ...interface{}) error {
	return &exitError{code: exitUsage, err: fmt.Errorf(format, args...)}
}

// configError maps a failure to load or apply configuration to exit code 2
func configError(err error) error {
	return &exitError{code: exitUsage, err: err}
}

func fatalError(err error) error {
	return &exitError{code: exitFatal, err: err}
}

// newRootCmd builds the command tree
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "igarchive",
		Short: "Resumable archiver for Instagram profile timelines",
		Long: `igarchive fetches a profile's posts page by page and keeps a local JSON
archive of them. Progress is checkpointed after every page, so an interrupted
run resumes where it stopped instead of starting over.

Exit codes:
  0   the run finished
  75  the run failed but can be resumed; run the same command again later
  1   the run failed and needs attention (credentials, storage, bad data)
  2   invalid configuration or usage`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.SetNoColor(opts.noColor)
			ui.SetQuietMode(opts.quiet)
			logger.Version = version

			if cmd.Name() == "fetch" && !opts.quiet {
				ui.PrintLogo()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default is ./.igarchive.yaml or ~/.config/igarchive/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory holding checkpoints and archives")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`igarchive {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(newFetchCmd(opts))
	rootCmd.AddCommand(newStatusCmd(opts))
	rootCmd.AddCommand(newResetCmd(opts))
	rootCmd.AddCommand(newAuthCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))

	return rootCmd
}

// Execute runs the command line and returns the process exit code
func Execute(args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	return exitCode(rootCmd.Execute())
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if !ee.reported && ee.err != nil {
			ui.PrintError("Error: %v", ee.err)
		}
		return ee.code
	}

	// Anything else comes from cobra itself: unknown commands, bad flags, wrong arguments
	ui.PrintError("Error: %v", err)
	return exitUsage
}

// loadConfig loads configuration with the global flags applied on top
func (o *globalOptions) loadConfig(flags map[string]interface{}) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if o.dataDir != "" {
		flags["data-dir"] = o.dataDir
	}
	if o.logLevel != "" {
		flags["log-level"] = o.logLevel
	}

	cfg, err := config.Load(o.configFile, flags)
	if err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}

// setup loads configuration and initializes the global logger
func (o *globalOptions) setup(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	cfg, err := o.loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, configError(errs.Wrap(errs.ErrorTypeConfig, err, "failed to initialize logging"))
	}

	return cfg, logger.GetLogger(), nil
}
