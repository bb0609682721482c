package workspace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/planverify/internal/blob"
	"github.com/roach88/planverify/internal/device"
	"github.com/roach88/planverify/internal/materialize"
	"github.com/roach88/planverify/internal/plan"
	"github.com/roach88/planverify/internal/testutil"
)

func mustPlan(t *testing.T, src string) *plan.Plan {
	t.Helper()
	p, err := plan.Parse("test.yaml", []byte(src))
	require.NoError(t, err)
	return p
}

func hostValues[T blob.Number](t *testing.T, ws *Workspace, name string) []T {
	t.Helper()
	b, ok := ws.GetBlob(name)
	require.True(t, ok, "blob %s", name)
	buf, err := materialize.ToHost[T](context.Background(), b)
	require.NoError(t, err)
	return append([]T(nil), buf.Values()...)
}

func TestRunPlan_ToyRegressionConverges(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - name: init
    ops:
      - {type: GivenTensorFill, outputs: [W_gt], shape: [3], values: [1.003, 1.998, 3.004]}
      - {type: ConstantFill, outputs: [W], shape: [3], value: 0}
      - {type: ConstantFill, outputs: [ONE], shape: [1], value: 1}
      - {type: ConstantFill, outputs: [LR], shape: [1], value: -0.1}
  - name: train
    iterations: 100
    ops:
      - {type: Sub, inputs: [W, W_gt], outputs: [grad]}
      - {type: WeightedSum, inputs: [W, ONE, grad, LR], outputs: [W]}
`))
	require.NoError(t, err)

	w := hostValues[float32](t, ws, "W")
	want := []float32{1.003, 1.998, 3.004}
	for i := range want {
		assert.InDelta(t, want[i], w[i], 0.005)
	}
}

func TestRunPlan_Arithmetic(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: GivenTensorFill, outputs: [a], values: [1, 2, 3]}
      - {type: GivenTensorFill, outputs: [b], values: [10, 20, 30]}
      - {type: GivenTensorFill, outputs: [two], values: [2]}
      - {type: Add, inputs: [a, b], outputs: [sum]}
      - {type: Sub, inputs: [b, a], outputs: [diff]}
      - {type: Mul, inputs: [a, two], outputs: [doubled]}
      - {type: Scale, inputs: [a], outputs: [scaled], scale: 0.5}
      - {type: AveragedLoss, inputs: [b], outputs: [mean]}
`))
	require.NoError(t, err)

	assert.Equal(t, []float32{11, 22, 33}, hostValues[float32](t, ws, "sum"))
	assert.Equal(t, []float32{9, 18, 27}, hostValues[float32](t, ws, "diff"))
	assert.Equal(t, []float32{2, 4, 6}, hostValues[float32](t, ws, "doubled"))
	assert.Equal(t, []float32{0.5, 1, 1.5}, hostValues[float32](t, ws, "scaled"))
	assert.Equal(t, []float32{20}, hostValues[float32](t, ws, "mean"))
}

func TestRunPlan_IntegerFills(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: GivenTensorFill, outputs: [a], dtype: int64, values: [1, 2]}
      - {type: ConstantFill, outputs: [b], dtype: int64, shape: [2], value: 5}
      - {type: Add, inputs: [a, b], outputs: [c]}
`))
	require.NoError(t, err)
	assert.Equal(t, []int64{6, 7}, hostValues[int64](t, ws, "c"))
}

func TestRunPlan_NonIntegralIntegerFill(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: ConstantFill, outputs: [a], dtype: int32, value: 1.5}
`))
	var opErr *OpError
	assert.ErrorAs(t, err, &opErr)
}

func TestRunPlan_Accuracy(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: GivenTensorFill, outputs: [scores], shape: [4, 2], values: [0.9, 0.1, 0.2, 0.8, 0.5, 0.5, 0.7, 0.3]}
      - {type: GivenTensorFill, outputs: [label], dtype: int32, values: [0, 1, 1, 1]}
      - {type: Accuracy, inputs: [scores, label], outputs: [accuracy]}
`))
	require.NoError(t, err)

	// Row 2 ties; the first maximum (column 0) wins, so it is wrong.
	assert.Equal(t, []float32{0.5}, hostValues[float32](t, ws, "accuracy"))
}

func TestRunPlan_AccuracyRejectsFloatLabels(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: GivenTensorFill, outputs: [scores], values: [0.9, 0.1]}
      - {type: GivenTensorFill, outputs: [label], values: [0]}
      - {type: Accuracy, inputs: [scores, label], outputs: [accuracy]}
`))
	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "Accuracy", opErr.Op)
}

func TestRunPlan_AcceleratorPlacement(t *testing.T) {
	ctx := context.Background()
	dev := testutil.NewFakeDevice()
	ws := New(WithDevice(dev))

	err := ws.RunPlan(ctx, mustPlan(t, `
steps:
  - ops:
      - {type: GivenTensorFill, outputs: [a], backend: gpu, values: [1, 2]}
      - {type: Scale, inputs: [a], outputs: [b], scale: 3}
      - {type: CopyAcceleratorToHost, inputs: [b], outputs: [c]}
      - {type: CopyHostToAccelerator, inputs: [c], outputs: [d]}
      - {type: Copy, inputs: [d], outputs: [e], backend: host}
`))
	require.NoError(t, err)

	for name, want := range map[string]blob.Backend{
		"a": blob.Accelerator,
		"b": blob.Accelerator, // follows its input
		"c": blob.Host,
		"d": blob.Accelerator,
		"e": blob.Host,
	} {
		b, ok := ws.GetBlob(name)
		require.True(t, ok, name)
		assert.Equal(t, want, b.Backend(), name)
	}
	assert.Equal(t, []float32{3, 6}, hostValues[float32](t, ws, "e"))
	assert.Equal(t, 3, dev.Resident())

	require.NoError(t, ws.Close())
	assert.Zero(t, dev.Resident(), "close frees every device buffer")
	assert.False(t, dev.Closed(), "the caller owns the device")
}

func TestRunPlan_CopyRequiresSourceBackend(t *testing.T) {
	ws := New(WithDevice(testutil.NewFakeDevice()))
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: GivenTensorFill, outputs: [a], values: [1]}
      - {type: CopyAcceleratorToHost, inputs: [a], outputs: [b]}
`))
	var berr *blob.BackendMismatchError
	assert.ErrorAs(t, err, &berr)
}

func TestRunPlan_AcceleratorWithoutDevice(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: GivenTensorFill, outputs: [a], backend: gpu, values: [1]}
`))
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestRunPlan_UploadFailureIsTransferError(t *testing.T) {
	dev := testutil.NewFakeDevice()
	dev.FailUpload = device.ErrOutOfMemory
	ws := New(WithDevice(dev))
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: ConstantFill, outputs: [a], backend: gpu, shape: [4], value: 1}
`))
	var terr *materialize.TransferError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, device.ErrOutOfMemory)
}

func TestRunPlan_RunErrorLocatesOp(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
name: locate
steps:
  - name: setup
    ops:
      - {type: ConstantFill, outputs: [a], value: 1}
  - name: loop
    iterations: 3
    ops:
      - {type: Add, inputs: [a, a], outputs: [a]}
      - {type: Add, inputs: [a, missing], outputs: [b]}
`))

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "locate", runErr.Plan)
	assert.Equal(t, "loop", runErr.Step)
	assert.Equal(t, 0, runErr.Iteration)
	assert.Equal(t, 1, runErr.Index)
	assert.Equal(t, "Add", runErr.Op)
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.Contains(t, err.Error(), "missing")
}

func TestRunPlan_UnknownOp(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: Conv, outputs: [y]}
`))
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestRunPlan_TypeMismatchBetweenInputs(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: GivenTensorFill, outputs: [a], values: [1]}
      - {type: GivenTensorFill, outputs: [b], dtype: int32, values: [1]}
      - {type: Add, inputs: [a, b], outputs: [c]}
`))
	var terr *blob.TypeMismatchError
	assert.ErrorAs(t, err, &terr)
}

func TestRunPlan_UntypedBlobCannotBeComputedOn(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: CreateBlob, outputs: [a]}
      - {type: Scale, inputs: [a], outputs: [b]}
`))
	require.Error(t, err)

	a, ok := ws.GetBlob("a")
	require.True(t, ok)
	assert.False(t, a.IsTyped())
}

func TestRunPlan_ZeroIterationStepIsSkipped(t *testing.T) {
	ws := New()
	defer ws.Close()

	err := ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - iterations: 0
    ops:
      - {type: Conv, outputs: [y]}
`))
	require.NoError(t, err)
	assert.Empty(t, ws.Blobs())
}

func TestRunPlan_Cancelled(t *testing.T) {
	ws := New()
	defer ws.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ws.RunPlan(ctx, mustPlan(t, `
steps:
  - ops:
      - {type: ConstantFill, outputs: [a], value: 1}
`))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ws.Blobs())
}

func TestWorkspace_GetBlobNormalizesName(t *testing.T) {
	ws := New()
	defer ws.Close()

	require.NoError(t, ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: ConstantFill, outputs: ["cafe\u0301"], value: 1}
`)))

	_, ok := ws.GetBlob("caf\u00e9")
	assert.True(t, ok)
	_, ok = ws.GetBlob("cafe\u0301")
	assert.True(t, ok)
	_, ok = ws.GetBlob("absent")
	assert.False(t, ok)
}

func TestWorkspace_CloseIsIdempotent(t *testing.T) {
	ws := New()
	require.NoError(t, ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: ConstantFill, outputs: [b], value: 1}
      - {type: ConstantFill, outputs: [a], value: 2}
`)))
	assert.Equal(t, []string{"a", "b"}, ws.Blobs())

	require.NoError(t, ws.Close())
	require.NoError(t, ws.Close())
	assert.Empty(t, ws.Blobs())

	err := ws.RunPlan(context.Background(), mustPlan(t, "steps:\n  - ops:\n      - {type: ConstantFill, outputs: [x]}\n"))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRegistry_CustomKernel(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("Noop", func(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
		called = true
		return []*blob.Blob{blob.NewHost([]float32{42})}, nil
	})
	r.Register("Fail", func(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
		return nil, errors.New("kernel failed")
	})
	assert.Equal(t, []string{"Fail", "Noop"}, r.Names())

	ws := New(WithRegistry(r))
	defer ws.Close()

	require.NoError(t, ws.RunPlan(context.Background(), mustPlan(t, "steps:\n  - ops:\n      - {type: Noop, outputs: [x]}\n")))
	assert.True(t, called)
	assert.Equal(t, []float32{42}, hostValues[float32](t, ws, "x"))

	err := ws.RunPlan(context.Background(), mustPlan(t, "steps:\n  - ops:\n      - {type: Noop, outputs: [x, y]}\n"))
	var opErr *OpError
	assert.ErrorAs(t, err, &opErr, "output count must match")
}

func TestDefaultRegistry_Names(t *testing.T) {
	assert.Equal(t, []string{
		"Accuracy", "Add", "AveragedLoss", "ConstantFill", "Copy",
		"CopyAcceleratorToHost", "CopyHostToAccelerator", "CreateBlob",
		"GivenTensorFill", "Mul", "Scale", "Sub", "WeightedSum",
	}, DefaultRegistry().Names())
}

func TestRunPlan_ReplacedBlobsAreReleased(t *testing.T) {
	dev := testutil.NewFakeDevice()
	ws := New(WithDevice(dev))
	defer ws.Close()

	require.NoError(t, ws.RunPlan(context.Background(), mustPlan(t, `
steps:
  - ops:
      - {type: ConstantFill, outputs: [a], backend: gpu, shape: [2], value: 1}
  - iterations: 5
    ops:
      - {type: Scale, inputs: [a], outputs: [a], scale: 2}
`)))

	assert.Equal(t, 1, dev.Resident())
	assert.Equal(t, []float32{32, 32}, hostValues[float32](t, ws, "a"))
}

func TestRunPlan_OversizedShapeFailsOp(t *testing.T) {
	ws := New()
	defer ws.Close()

	// Built in code, so plan.Validate never saw the shape.
	p := &plan.Plan{Name: "huge", Steps: []plan.Step{{
		Name:       "fill",
		Iterations: 1,
		Ops: []plan.Op{{
			Type:    "ConstantFill",
			Outputs: []string{"x"},
			Shape:   []int{1 << 62, 3},
		}},
	}}}

	var err error
	require.NotPanics(t, func() { err = ws.RunPlan(context.Background(), p) })

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "ConstantFill", opErr.Op)
	assert.Empty(t, ws.Blobs())
}

func TestRunPlan_KernelPanicFailsOp(t *testing.T) {
	r := DefaultRegistry()
	r.Register("Explode", func(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
		var values []float32
		return []*blob.Blob{blob.NewHost(values[:1])}, nil
	})
	ws := New(WithRegistry(r))
	defer ws.Close()

	var err error
	require.NotPanics(t, func() {
		err = ws.RunPlan(context.Background(), mustPlan(t, "steps:\n  - ops:\n      - {type: Explode, outputs: [x]}\n"))
	})

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "Explode", runErr.Op)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Contains(t, opErr.Message, "panic")
}
