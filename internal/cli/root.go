package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/planverify/internal/config"
)

// RootOptions holds global flags for all commands, and the configuration
// resolved from them before any subcommand runs.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "json" | "text"
	Root       string

	// Config is set by the root command's pre-run hook.
	Config *config.Config

	// Logger writes to stderr; set by the pre-run hook.
	Logger *slog.Logger
}

// NewRootCommand creates the root command for the planverify CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "planverify",
		Short: "planverify - end-to-end checks for computation plans",
		Long: `planverify runs computation plans in a fresh workspace and checks their
outputs: element-wise against a reference within a tolerance, or a single
metric against a threshold.

Settings come from flags, PLANVERIFY_* environment variables, and
planverify.yaml (in the working directory or $HOME/.planverify).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return resolveConfig(opts, cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default is ./planverify.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Root, "root", ".", "data root that scenario plan paths are relative to")

	// Add subcommands
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))

	return cmd
}

// boundFlags maps config keys to the flag that may override them. Flags a
// command does not define are skipped.
var boundFlags = map[string]string{
	config.KeyRoot:      "root",
	config.KeyFormat:    "format",
	config.KeyVerbose:   "verbose",
	config.KeyLarge:     "large",
	config.KeyFilter:    "filter",
	config.KeyScenarios: "scenarios",
}

// resolveConfig merges flags, environment and config file into opts.
func resolveConfig(opts *RootOptions, cmd *cobra.Command) error {
	loader := config.NewLoader()
	for key, name := range boundFlags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := loader.BindFlag(key, flag); err != nil {
			return WrapExitError(ExitCommandError, "invalid flags", err)
		}
	}

	cfg, used, err := loader.Load(opts.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration error", err)
	}

	opts.Config = cfg
	opts.Format = cfg.Format
	opts.Verbose = cfg.Verbose
	opts.Root = cfg.Root
	opts.Logger = newLogger(cmd.ErrOrStderr(), cfg.Verbose)

	if used != "" {
		opts.Logger.Debug("using config file", "path", used)
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
