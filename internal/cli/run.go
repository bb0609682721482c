package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/planverify/internal/config"
	"github.com/roach88/planverify/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter    string // glob over scenario names
	Large     bool   // include long-running scenarios
	Scenarios string // optional scenario table file
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run validation scenarios",
		Long: `Run validation scenarios and report pass or fail for each.

Each scenario loads its plan from the data root, runs it in a fresh
workspace with its own accelerator, and checks the named outputs.
Long-running scenarios are skipped unless --large is given.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (bad config, unreadable scenario table, etc.)

Examples:
  planverify run --root ./testdata
  planverify run --filter "mnist_*" --large
  planverify run --scenarios extra.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Large, "large", false, "include long-running scenarios")
	cmd.Flags().StringVar(&opts.Scenarios, "scenarios", "", "scenario table file (default: builtin table)")

	return cmd
}

// scenarioTable returns the builtin table or the one named in cfg.
func scenarioTable(cfg *config.Config) ([]harness.Scenario, error) {
	if cfg.Scenarios == "" {
		return harness.Builtin(), nil
	}
	scenarios, err := harness.LoadScenarios(cfg.Scenarios)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}
	return scenarios, nil
}

func runScenarios(opts *RunOptions, cmd *cobra.Command) error {
	cfg := opts.Config

	scenarios, err := scenarioTable(cfg)
	if err != nil {
		return err
	}

	selected := harness.Select(scenarios, harness.Filter{Pattern: cfg.Filter, IncludeLarge: cfg.Large})
	w := cmd.OutOrStdout()

	if len(selected) == 0 {
		if opts.Format == "json" {
			return writeJSON(w, CLIResponse{Status: "ok", Data: harness.Report{Results: []harness.Result{}}})
		}
		fmt.Fprintln(w, "No scenarios selected.")
		return nil
	}

	opts.Logger.Debug("running scenarios", "count", len(selected), "root", cfg.Root)

	runner := &harness.Runner{Root: cfg.Root, Logger: opts.Logger}
	report := runner.RunAll(cmd.Context(), selected)

	if opts.Format == "json" {
		if err := writeReportJSON(w, report); err != nil {
			return err
		}
	} else {
		writeReportText(w, report)
	}

	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", report.Failed))
	}
	return nil
}
