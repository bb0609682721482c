package check

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithin_Reflexive(t *testing.T) {
	a := []float32{0, -1.5, 3.25, 1e6}
	assert.NoError(t, Within(a, a, 0))
	assert.NoError(t, Within([]int64{}, []int64{}, 0))
}

func TestWithin_BoundaryIsInclusive(t *testing.T) {
	assert.NoError(t, Within([]float64{1.0}, []float64{1.5}, 0.5))
	assert.NoError(t, Within([]int32{10}, []int32{7}, 3))
	assert.Error(t, Within([]int32{10}, []int32{6}, 3))
}

func TestWithin_ReportsEveryFailingIndex(t *testing.T) {
	got := []float32{1, 2, 3, 4}
	want := []float32{1, 2.5, 3, 5}

	err := Within(got, want, 0.1)

	var terr *ToleranceExceededError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, []int{1, 3}, terr.Indices())
	assert.Equal(t, 1, terr.First().Index)
	assert.InDelta(t, 0.5, terr.First().Diff, 1e-6)
	assert.Equal(t, "tolerance_exceeded", terr.Kind())
}

func TestWithin_EndToEndRegressionValues(t *testing.T) {
	w := []float32{1, 2, 3}
	eps := float32(0.005)

	assert.NoError(t, Within(w, []float32{1.003, 1.998, 3.004}, eps))

	err := Within(w, []float32{1.003, 1.990, 3.004}, eps)
	var terr *ToleranceExceededError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, []int{1}, terr.Indices())
}

func TestWithin_LengthCheckedFirst(t *testing.T) {
	// Elements would also fail; the length error must win.
	err := Within([]float64{100, 200}, []float64{0}, 0)

	var lerr *LengthMismatchError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, 2, lerr.Got)
	assert.Equal(t, 1, lerr.Want)
	assert.Equal(t, "length_mismatch", lerr.Kind())
}

func TestWithin_NaNFails(t *testing.T) {
	nan := math.NaN()
	assert.Error(t, Within([]float64{nan}, []float64{nan}, 1))
	assert.Error(t, Within([]float64{1}, []float64{nan}, math.Inf(1)))
}

func TestWithin_IntegerDiffDoesNotWrap(t *testing.T) {
	err := Within([]int32{math.MinInt32}, []int32{math.MaxInt32}, 1)
	assert.Error(t, err)
	assert.NoError(t, Within([]int64{math.MaxInt64}, []int64{math.MaxInt64 - 1}, 1))
}

func TestWithin_NegativeTolerance(t *testing.T) {
	err := Within([]float64{1}, []float64{1}, -0.1)
	var ierr *InvalidToleranceError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "invalid_tolerance", ierr.Kind())
}

func TestToleranceExceededError_MessageIsCapped(t *testing.T) {
	got := make([]float64, 20)
	want := make([]float64, 20)
	for i := range want {
		want[i] = 1
	}

	err := Within(got, want, 0.1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded at 20 index(es)")
	assert.Contains(t, err.Error(), "(12 more)")

	var terr *ToleranceExceededError
	require.ErrorAs(t, err, &terr)
	assert.Len(t, terr.Failures, 20)
}

func TestAbove(t *testing.T) {
	assert.NoError(t, Above([]float32{0.87}, 0.85))

	err := Above([]float32{0.83}, 0.85)
	var terr *ThresholdNotMetError
	require.ErrorAs(t, err, &terr)
	assert.InDelta(t, 0.83, terr.Value, 1e-6)
	assert.Equal(t, "threshold_not_met", terr.Kind())
}

func TestAbove_IsStrict(t *testing.T) {
	theta := float32(0.9)
	assert.Error(t, Above([]float32{theta}, theta))
	assert.NoError(t, Above([]float32{math.Nextafter32(theta, 1)}, theta))
}

func TestAbove_NaNFails(t *testing.T) {
	assert.Error(t, Above([]float64{math.NaN()}, 0))
}

func TestAbove_RequiresOneElement(t *testing.T) {
	for _, values := range [][]float32{{}, {0.9, 0.95}} {
		err := Above(values, 0.5)
		var serr *SizeError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, len(values), serr.Got)
		assert.Equal(t, "size", serr.Kind())
	}
}

func TestFailureInterface(t *testing.T) {
	var failures []Failure = []Failure{
		&InvalidToleranceError{},
		&LengthMismatchError{},
		&ToleranceExceededError{Failures: []Mismatch{{}}},
		&SizeError{},
		&ThresholdNotMetError{},
	}
	for _, f := range failures {
		assert.NotEmpty(t, f.Kind())
		assert.NotEmpty(t, f.Error())
	}
}

func TestParam(t *testing.T) {
	f32, err := Param[float32](0.85)
	require.NoError(t, err)
	assert.Equal(t, float32(0.85), f32)

	i32, err := Param[int32](5)
	require.NoError(t, err)
	assert.Equal(t, int32(5), i32)

	i64, err := Param[int64](-3)
	require.NoError(t, err)
	assert.Equal(t, int64(-3), i64)

	_, err = Param[int32](5.5)
	assert.Error(t, err)
	_, err = Param[int32](math.MaxInt32 + 1)
	assert.Error(t, err)
	_, err = Param[float32](1e39)
	assert.Error(t, err)
	_, err = Param[float64](math.NaN())
	assert.Error(t, err)
	_, err = Param[float64](math.Inf(-1))
	assert.Error(t, err)
}
