package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/roach88/planverify/internal/harness"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // One or more scenarios failed, or a plan is invalid
	ExitCommandError = 2 // Command error (bad config, missing scenario table, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil and ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used in JSON responses.
const (
	ErrCodeScenariosFailed = "E_SCENARIOS_FAILED"
	ErrCodePlanInvalid     = "E_PLAN_INVALID"
)

func writeJSON(w io.Writer, response CLIResponse) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// palette styles text output. Colors are only used on a terminal.
type palette struct {
	pass   lipgloss.Style
	fail   lipgloss.Style
	subtle lipgloss.Style
}

func newPalette(w io.Writer) palette {
	if !isTerminal(w) {
		return palette{pass: lipgloss.NewStyle(), fail: lipgloss.NewStyle(), subtle: lipgloss.NewStyle()}
	}
	return palette{
		pass:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		fail:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		subtle: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// writeReportText prints one line per scenario, the cause under each
// failure, and a summary line.
func writeReportText(w io.Writer, report harness.Report) {
	p := newPalette(w)
	for _, r := range report.Results {
		if r.Pass {
			fmt.Fprintf(w, "%s %s\n", p.pass.Render("✓"), r.Scenario)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", p.fail.Render("✗"), r.Scenario)
		fmt.Fprintf(w, "  %s\n", p.subtle.Render(fmt.Sprintf("%s: %s", r.Kind, r.Message)))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Total)
	if report.OK() {
		fmt.Fprintln(w, p.pass.Render("✓ All scenarios passed"))
	}
}

// writeReportJSON wraps the report in a CLIResponse.
func writeReportJSON(w io.Writer, report harness.Report) error {
	response := CLIResponse{Status: "ok", Data: report}
	if !report.OK() {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeScenariosFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", report.Failed),
		}
	}
	return writeJSON(w, response)
}
