package workspace

import (
	"context"
	"math"

	"github.com/roach88/planverify/internal/blob"
	"github.com/roach88/planverify/internal/materialize"
	"github.com/roach88/planverify/internal/plan"
)

// typedFn is one dtype instantiation of a generic kernel.
type typedFn func(ctx context.Context, oc *OpContext) (*blob.Blob, error)

// byType selects a kernel instantiation by element type.
type byType map[blob.DType]typedFn

func (m byType) run(ctx context.Context, oc *OpContext, dtype blob.DType) ([]*blob.Blob, error) {
	fn, ok := m[dtype]
	if !ok {
		return nil, opErrorf(oc.Op.Type, "unsupported dtype %s", dtype)
	}
	b, err := fn(ctx, oc)
	if err != nil {
		return nil, err
	}
	return []*blob.Blob{b}, nil
}

// place stores values on the op's target backend.
func place[T blob.Number](ctx context.Context, oc *OpContext, values []T) (*blob.Blob, error) {
	if oc.Target == blob.Accelerator {
		return materialize.Upload(ctx, oc.Device, values)
	}
	return blob.NewHost(values), nil
}

func cast[T blob.Number](op string, v float64) (T, error) {
	switch blob.DTypeOf[T]() {
	case blob.Int32, blob.Int64:
		if v != math.Trunc(v) {
			return 0, opErrorf(op, "value %v is not an integer", v)
		}
	}
	return T(v), nil
}

func castAll[T blob.Number](op string, values []float64) ([]T, error) {
	out := make([]T, len(values))
	for i, v := range values {
		c, err := cast[T](op, v)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func arity(oc *OpContext, n int) error {
	if len(oc.Inputs) != n {
		return opErrorf(oc.Op.Type, "expects %d inputs, got %d", n, len(oc.Inputs))
	}
	return nil
}

func sameDType(oc *OpContext) error {
	want := oc.Inputs[0].DType()
	for _, in := range oc.Inputs[1:] {
		if in.DType() != want {
			return &blob.TypeMismatchError{Want: want, Got: in.DType()}
		}
	}
	return nil
}

// fillDType defaults fill ops to float32.
func fillDType(op plan.Op) blob.DType {
	if op.DType == blob.Undefined {
		return blob.Float32
	}
	return op.DType
}

// --- fills ---

func givenTensorFill(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
	return byType{
		blob.Float32: givenTensorFillT[float32],
		blob.Float64: givenTensorFillT[float64],
		blob.Int32:   givenTensorFillT[int32],
		blob.Int64:   givenTensorFillT[int64],
	}.run(ctx, oc, fillDType(oc.Op))
}

func givenTensorFillT[T blob.Number](ctx context.Context, oc *OpContext) (*blob.Blob, error) {
	values, err := castAll[T](oc.Op.Type, oc.Op.Values)
	if err != nil {
		return nil, err
	}
	return place(ctx, oc, values)
}

func constantFill(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
	return byType{
		blob.Float32: constantFillT[float32],
		blob.Float64: constantFillT[float64],
		blob.Int32:   constantFillT[int32],
		blob.Int64:   constantFillT[int64],
	}.run(ctx, oc, fillDType(oc.Op))
}

func constantFillT[T blob.Number](ctx context.Context, oc *OpContext) (*blob.Blob, error) {
	v, err := cast[T](oc.Op.Type, oc.Op.Value)
	if err != nil {
		return nil, err
	}
	// Plans built in code may skip plan.Validate.
	n, err := plan.CheckShape(oc.Op.Shape)
	if err != nil {
		return nil, opErrorf(oc.Op.Type, "%v", err)
	}
	values := make([]T, n)
	for i := range values {
		values[i] = v
	}
	return place(ctx, oc, values)
}

func createBlob(_ context.Context, oc *OpContext) ([]*blob.Blob, error) {
	out := make([]*blob.Blob, len(oc.Op.Outputs))
	for i := range out {
		out[i] = blob.NewUntyped()
	}
	return out, nil
}

// --- copies ---

var copyKernels = byType{
	blob.Float32: copyT[float32],
	blob.Float64: copyT[float64],
	blob.Int32:   copyT[int32],
	blob.Int64:   copyT[int64],
}

func copyBlob(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
	if err := arity(oc, 1); err != nil {
		return nil, err
	}
	return copyKernels.run(ctx, oc, oc.Inputs[0].DType())
}

// copyTo builds an explicit cross-backend copy that insists on the source
// backend and ignores the op's placement.
func copyTo(from, to blob.Backend) Kernel {
	return func(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
		if err := arity(oc, 1); err != nil {
			return nil, err
		}
		if err := blob.CheckBackend(oc.Inputs[0], from); err != nil {
			return nil, err
		}
		if to == blob.Accelerator && oc.Device == nil {
			return nil, ErrNoDevice
		}

		moved := *oc
		moved.Target = to
		return copyKernels.run(ctx, &moved, oc.Inputs[0].DType())
	}
}

func copyT[T blob.Number](ctx context.Context, oc *OpContext) (*blob.Blob, error) {
	src, err := materialize.ToHost[T](ctx, oc.Inputs[0])
	if err != nil {
		return nil, err
	}
	return place(ctx, oc, src.Values())
}

// --- arithmetic ---

func arithmetic(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
	if err := arity(oc, 2); err != nil {
		return nil, err
	}
	if err := sameDType(oc); err != nil {
		return nil, err
	}
	return byType{
		blob.Float32: arithmeticT[float32],
		blob.Float64: arithmeticT[float64],
		blob.Int32:   arithmeticT[int32],
		blob.Int64:   arithmeticT[int64],
	}.run(ctx, oc, oc.Inputs[0].DType())
}

// arithmeticT applies Add, Sub or Mul element-wise. A single-element second
// operand is broadcast.
func arithmeticT[T blob.Number](ctx context.Context, oc *OpContext) (*blob.Blob, error) {
	a, err := materialize.ToHost[T](ctx, oc.Inputs[0])
	if err != nil {
		return nil, err
	}
	b, err := materialize.ToHost[T](ctx, oc.Inputs[1])
	if err != nil {
		return nil, err
	}

	if b.Len() != a.Len() && b.Len() != 1 {
		return nil, opErrorf(oc.Op.Type, "operand lengths %d and %d do not broadcast", a.Len(), b.Len())
	}

	var fn func(x, y T) T
	switch oc.Op.Type {
	case "Add":
		fn = func(x, y T) T { return x + y }
	case "Sub":
		fn = func(x, y T) T { return x - y }
	case "Mul":
		fn = func(x, y T) T { return x * y }
	default:
		return nil, opErrorf(oc.Op.Type, "not an arithmetic op")
	}

	out := make([]T, a.Len())
	for i := range out {
		j := i
		if b.Len() == 1 {
			j = 0
		}
		out[i] = fn(a.At(i), b.At(j))
	}
	return place(ctx, oc, out)
}

func scale(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
	if err := arity(oc, 1); err != nil {
		return nil, err
	}
	return byType{
		blob.Float32: scaleT[float32],
		blob.Float64: scaleT[float64],
		blob.Int32:   scaleT[int32],
		blob.Int64:   scaleT[int64],
	}.run(ctx, oc, oc.Inputs[0].DType())
}

func scaleT[T blob.Number](ctx context.Context, oc *OpContext) (*blob.Blob, error) {
	factor, err := cast[T](oc.Op.Type, oc.Op.Scale)
	if err != nil {
		return nil, err
	}
	in, err := materialize.ToHost[T](ctx, oc.Inputs[0])
	if err != nil {
		return nil, err
	}
	out := make([]T, in.Len())
	for i := range out {
		out[i] = in.At(i) * factor
	}
	return place(ctx, oc, out)
}

// weightedSum computes X0*w0 + X1*w1 + ... where inputs alternate between
// tensors Xi and scalar weights wi.
func weightedSum(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
	if len(oc.Inputs) < 2 || len(oc.Inputs)%2 != 0 {
		return nil, opErrorf(oc.Op.Type, "expects an even, non-zero number of inputs, got %d", len(oc.Inputs))
	}
	if err := sameDType(oc); err != nil {
		return nil, err
	}
	return byType{
		blob.Float32: weightedSumT[float32],
		blob.Float64: weightedSumT[float64],
		blob.Int32:   weightedSumT[int32],
		blob.Int64:   weightedSumT[int64],
	}.run(ctx, oc, oc.Inputs[0].DType())
}

func weightedSumT[T blob.Number](ctx context.Context, oc *OpContext) (*blob.Blob, error) {
	var out []T
	for i := 0; i < len(oc.Inputs); i += 2 {
		x, err := materialize.ToHost[T](ctx, oc.Inputs[i])
		if err != nil {
			return nil, err
		}
		w, err := materialize.ToHost[T](ctx, oc.Inputs[i+1])
		if err != nil {
			return nil, err
		}
		if w.Len() != 1 {
			return nil, opErrorf(oc.Op.Type, "weight %s must be a scalar, has %d elements", oc.Op.Inputs[i+1], w.Len())
		}

		if out == nil {
			out = make([]T, x.Len())
		} else if x.Len() != len(out) {
			return nil, opErrorf(oc.Op.Type, "input %s has %d elements, expected %d", oc.Op.Inputs[i], x.Len(), len(out))
		}

		weight := w.At(0)
		for j := range out {
			out[j] += x.At(j) * weight
		}
	}
	return place(ctx, oc, out)
}

// --- metrics ---

// accuracy takes scores [N, K] and integer labels [N] and produces a float32
// scalar: the fraction of rows whose highest score (first on ties) is at the
// labelled column.
func accuracy(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
	if err := arity(oc, 2); err != nil {
		return nil, err
	}
	return byType{
		blob.Float32: accuracyT[float32],
		blob.Float64: accuracyT[float64],
		blob.Int32:   accuracyT[int32],
		blob.Int64:   accuracyT[int64],
	}.run(ctx, oc, oc.Inputs[0].DType())
}

func accuracyT[T blob.Number](ctx context.Context, oc *OpContext) (*blob.Blob, error) {
	scores, err := materialize.ToHost[T](ctx, oc.Inputs[0])
	if err != nil {
		return nil, err
	}
	labels, err := readLabels(ctx, oc.Op.Type, oc.Inputs[1])
	if err != nil {
		return nil, err
	}

	n := len(labels)
	if n == 0 {
		return nil, opErrorf(oc.Op.Type, "no labels")
	}
	if scores.Len() == 0 || scores.Len()%n != 0 {
		return nil, opErrorf(oc.Op.Type, "%d scores do not split into %d rows", scores.Len(), n)
	}
	k := scores.Len() / n

	correct := 0
	for row := 0; row < n; row++ {
		best := 0
		for col := 1; col < k; col++ {
			if scores.At(row*k+col) > scores.At(row*k+best) {
				best = col
			}
		}
		if int64(best) == labels[row] {
			correct++
		}
	}

	return place(ctx, oc, []float32{float32(correct) / float32(n)})
}

func readLabels(ctx context.Context, op string, b *blob.Blob) ([]int64, error) {
	switch b.DType() {
	case blob.Int32:
		h, err := materialize.ToHost[int32](ctx, b)
		if err != nil {
			return nil, err
		}
		out := make([]int64, h.Len())
		for i := range out {
			out[i] = int64(h.At(i))
		}
		return out, nil
	case blob.Int64:
		h, err := materialize.ToHost[int64](ctx, b)
		if err != nil {
			return nil, err
		}
		return append([]int64(nil), h.Values()...), nil
	default:
		return nil, opErrorf(op, "labels must be int32 or int64, got %s", b.DType())
	}
}

// averagedLoss reduces a floating-point input to its mean.
func averagedLoss(ctx context.Context, oc *OpContext) ([]*blob.Blob, error) {
	if err := arity(oc, 1); err != nil {
		return nil, err
	}
	return byType{
		blob.Float32: averagedLossT[float32],
		blob.Float64: averagedLossT[float64],
	}.run(ctx, oc, oc.Inputs[0].DType())
}

func averagedLossT[T blob.Number](ctx context.Context, oc *OpContext) (*blob.Blob, error) {
	in, err := materialize.ToHost[T](ctx, oc.Inputs[0])
	if err != nil {
		return nil, err
	}
	if in.Len() == 0 {
		return nil, opErrorf(oc.Op.Type, "cannot average an empty blob")
	}
	var sum T
	for i := 0; i < in.Len(); i++ {
		sum += in.At(i)
	}
	return place(ctx, oc, []T{sum / T(in.Len())})
}
