package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/planverify/internal/blob"
	"github.com/roach88/planverify/internal/device"
	"github.com/roach88/planverify/internal/materialize"
	"github.com/roach88/planverify/internal/plan"
	"github.com/roach88/planverify/internal/workspace"
)

// DeviceFactory opens the accelerator backend for one scenario.
type DeviceFactory func() (device.Device, error)

// Runner executes scenarios against plans under Root.
//
// The zero value is usable: plans resolve relative to the working
// directory, logs are discarded, and each scenario gets a fresh in-memory
// accelerator.
type Runner struct {
	// Root is the data root scenario plan paths are relative to.
	Root string

	// Logger receives progress logs. Nil discards them.
	Logger *slog.Logger

	// NewDevice opens a device per scenario. Nil uses device.OpenSQLite.
	NewDevice DeviceFactory

	// NewRunID generates a run identifier. Nil uses UUIDv7.
	NewRunID func() string
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (r *Runner) runID() string {
	if r.NewRunID != nil {
		return r.NewRunID()
	}
	return uuid.Must(uuid.NewV7()).String()
}

func (r *Runner) openDevice() (device.Device, error) {
	if r.NewDevice != nil {
		return r.NewDevice()
	}
	return device.OpenSQLite()
}

// planPath resolves a scenario plan path against Root.
func (r *Runner) planPath(p string) string {
	if filepath.IsAbs(p) || r.Root == "" {
		return p
	}
	return filepath.Join(r.Root, p)
}

// Run executes one scenario in isolation and reports its outcome.
//
// Parameters:
//   - ctx: cancels the run between operators and during device transfers
//   - s: the scenario to execute; a zero DType defaults to float32
//
// Returns a Result that is either a pass or a failure carrying exactly one
// classified cause in Result.Kind. Run never panics on scenario failure and
// never returns early without a Result.
func (r *Runner) Run(ctx context.Context, s Scenario) Result {
	res := Result{Scenario: s.Name, RunID: r.runID()}
	logger := r.logger().With("scenario", s.Name, "run_id", res.RunID)

	start := time.Now()
	logger.Info("scenario started", "plan", s.Plan)

	if err := r.run(ctx, s, logger); err != nil {
		res.fail(err)
		logger.Info("scenario finished",
			"pass", false,
			"kind", string(res.Kind),
			"error", res.Message,
			"duration", time.Since(start),
		)
		return res
	}

	res.Pass = true
	logger.Info("scenario finished", "pass", true, "duration", time.Since(start))
	return res
}

// run does the work for Run. The device and workspace it creates are
// released before it returns, whatever the outcome.
func (r *Runner) run(ctx context.Context, s Scenario, logger *slog.Logger) (err error) {
	// Validate required fields
	if s.DType == blob.Undefined {
		s.DType = blob.Float32
	}
	if verr := s.Validate(); verr != nil {
		return &InvalidScenarioError{Scenario: s.Name, Err: verr}
	}

	// Load the plan before anything is allocated
	p, err := plan.Load(r.planPath(s.Plan))
	if err != nil {
		return err
	}
	logger.Debug("plan loaded", "plan", p.Name, "steps", len(p.Steps), "ops", p.NumOps())

	// Fresh accelerator and workspace, released in reverse order
	dev, err := r.openDevice()
	if err != nil {
		return &materialize.TransferError{Blob: "-", Device: "-", Op: "open", Err: err}
	}
	defer func() {
		if cerr := dev.Close(); cerr != nil {
			logger.Warn("device close failed", "error", cerr)
		}
	}()

	ws := workspace.New(workspace.WithDevice(dev), workspace.WithLogger(logger))
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			logger.Warn("workspace close failed", "error", cerr)
		}
	}()

	// Execute the plan
	if err := ws.RunPlan(ctx, p); err != nil {
		return err
	}

	// Fetch outputs and check their tags
	outputs := make([]*blob.Blob, len(s.Outputs))
	for i, out := range s.Outputs {
		b, ok := ws.GetBlob(out.Blob)
		if !ok {
			return &BlobAbsentError{Blob: out.Blob, Available: ws.Blobs()}
		}
		if err := blob.CheckDType(b, s.DType); err != nil {
			return fmt.Errorf("output %q: %w", out.Blob, err)
		}
		if err := blob.CheckBackend(b, out.Backend); err != nil {
			return fmt.Errorf("output %q: %w", out.Blob, err)
		}
		outputs[i] = b
	}

	// Materialize and apply the assertion
	return evaluate(ctx, s, outputs)
}

// RunAll runs scenarios sequentially in the given order. A failing scenario
// does not stop the ones after it; a cancelled context does, and the
// scenarios not yet started are reported as failed run errors.
func (r *Runner) RunAll(ctx context.Context, scenarios []Scenario) Report {
	var report Report
	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			res := Result{Scenario: s.Name, RunID: r.runID()}
			res.fail(fmt.Errorf("not started: %w", err))
			report.Add(res)
			continue
		}
		report.Add(r.Run(ctx, s))
	}
	return report
}

// IsCancelled reports whether a result failed because its context ended.
func IsCancelled(res Result) bool {
	return errors.Is(res.Cause, context.Canceled) || errors.Is(res.Cause, context.DeadlineExceeded)
}
