package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/planverify/internal/harness"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Filter    string
	Large     bool
	Scenarios string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the scenarios run would execute",
		Long: `List scenarios after filtering, without running them.

Examples:
  planverify list
  planverify list --large --filter "*_gpu"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().BoolVar(&opts.Large, "large", false, "include long-running scenarios")
	cmd.Flags().StringVar(&opts.Scenarios, "scenarios", "", "scenario table file (default: builtin table)")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	cfg := opts.Config

	scenarios, err := scenarioTable(cfg)
	if err != nil {
		return err
	}
	selected := harness.Select(scenarios, harness.Filter{Pattern: cfg.Filter, IncludeLarge: cfg.Large})
	if selected == nil {
		selected = []harness.Scenario{}
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(w, CLIResponse{Status: "ok", Data: selected})
	}

	if len(selected) == 0 {
		fmt.Fprintln(w, "No scenarios selected.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tASSERTION\tPLAN\tLARGE")
	for _, s := range selected {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", s.Name, describeAssertion(s), s.Plan, s.Large)
	}
	return tw.Flush()
}

func describeAssertion(s harness.Scenario) string {
	switch s.Assertion {
	case harness.AssertTolerance:
		return fmt.Sprintf("|%s - %s| <= %g", s.Outputs[0].Blob, s.Outputs[1].Blob, s.Tolerance)
	case harness.AssertThreshold:
		return fmt.Sprintf("%s@%s > %g", s.Outputs[0].Blob, s.Outputs[0].Backend, s.Threshold)
	default:
		return string(s.Assertion)
	}
}
