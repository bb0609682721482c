package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/planverify/internal/plan"
)

// PlanSummary describes a loaded plan.
type PlanSummary struct {
	Name  string        `json:"name"`
	Steps []StepSummary `json:"steps"`
	Ops   int           `json:"ops"`
}

// StepSummary describes one plan step.
type StepSummary struct {
	Name       string   `json:"name"`
	Iterations int      `json:"iterations"`
	Ops        []string `json:"ops"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "Load and validate a plan file",
		Long: `Load a plan file (.yaml, .yml, .cue or .hcl), validate it, and print
its steps. Nothing is executed.

Exit codes:
  0 - Plan is valid
  1 - Plan is malformed or invalid
  2 - Plan file not found or unreadable`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runPlan(opts *RootOptions, path string, cmd *cobra.Command) error {
	w := cmd.OutOrStdout()

	p, err := plan.Load(path)
	if err != nil {
		code := ExitFailure
		var loadErr *plan.LoadError
		if errors.As(err, &loadErr) && (loadErr.Code == plan.ErrCodeNotFound || loadErr.Code == plan.ErrCodeReadFailed) {
			code = ExitCommandError
		}

		if opts.Format == "json" {
			if werr := writeJSON(w, CLIResponse{
				Status: "error",
				Error:  &CLIError{Code: ErrCodePlanInvalid, Message: err.Error()},
			}); werr != nil {
				return werr
			}
		}
		return WrapExitError(code, "plan rejected", err)
	}

	summary := summarize(p)
	if opts.Format == "json" {
		return writeJSON(w, CLIResponse{Status: "ok", Data: summary})
	}

	fmt.Fprintf(w, "plan %s: %d step(s), %d op(s)\n", summary.Name, len(summary.Steps), summary.Ops)
	for _, s := range summary.Steps {
		fmt.Fprintf(w, "  %s x%d: %v\n", s.Name, s.Iterations, s.Ops)
	}
	return nil
}

func summarize(p *plan.Plan) PlanSummary {
	summary := PlanSummary{Name: p.Name, Ops: p.NumOps()}
	for _, step := range p.Steps {
		ss := StepSummary{Name: step.Name, Iterations: step.Iterations}
		for _, op := range step.Ops {
			ss.Ops = append(ss.Ops, op.Type)
		}
		summary.Steps = append(summary.Steps, ss)
	}
	return summary
}
