package check

import (
	"fmt"
	"math"

	"github.com/roach88/planverify/internal/blob"
)

// Param converts a scenario parameter (always written as float64) to the
// blob's element type T.
//
// For float32 this is the nearest representable value, which is what a
// literal like 0.85 means when compared against float32 data. Integer types
// reject non-integral parameters instead of truncating them.
func Param[T blob.Number](v float64) (T, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parameter %v is not finite", v)
	}

	switch blob.DTypeOf[T]() {
	case blob.Float32:
		if math.Abs(v) > math.MaxFloat32 {
			return 0, fmt.Errorf("parameter %v overflows float32", v)
		}
	case blob.Int32:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return 0, fmt.Errorf("parameter %v is not representable as int32", v)
		}
	case blob.Int64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, fmt.Errorf("parameter %v is not representable as int64", v)
		}
	}
	return T(v), nil
}
