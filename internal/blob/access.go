package blob

import "fmt"

// TypeMismatchError is returned when a blob is accessed as the wrong
// element type, including any typed access to an untyped blob.
type TypeMismatchError struct {
	Want DType
	Got  DType
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s blob, got %s", e.Want, e.Got)
}

// BackendMismatchError is returned when a blob does not reside on the
// expected backend.
type BackendMismatchError struct {
	Want Backend
	Got  Backend
}

func (e *BackendMismatchError) Error() string {
	return fmt.Sprintf("backend mismatch: expected %s blob, got %s", e.Want, e.Got)
}

// ReleasedError is returned when a released blob is accessed.
type ReleasedError struct {
	Blob string
}

func (e *ReleasedError) Error() string {
	return fmt.Sprintf("blob %s has been released", e.Blob)
}

// View is a read-only typed window over host-resident blob storage.
type View[T Number] struct {
	data []T
}

// Len returns the element count.
func (v View[T]) Len() int { return len(v.data) }

// At returns element i.
func (v View[T]) At(i int) T { return v.data[i] }

// Values returns the backing slice. It aliases blob storage and must not be
// modified; use Clone for a private copy.
func (v View[T]) Values() []T { return v.data }

// Clone returns a private copy of the viewed elements.
func (v View[T]) Clone() []T {
	out := make([]T, len(v.data))
	copy(out, v.data)
	return out
}

// AsTyped returns a typed view of b after checking, in order, that b's
// element type is T and that b resides on the expected backend.
//
// Only host storage can be viewed. Asking for an accelerator view returns a
// *BackendMismatchError; accelerator data must go through
// materialize.ToHost, which is the one sanctioned backend crossing.
func AsTyped[T Number](b *Blob, expected Backend) (View[T], error) {
	want := DTypeOf[T]()
	if b.dtype != want {
		return View[T]{}, &TypeMismatchError{Want: want, Got: b.dtype}
	}

	if b.backend != expected {
		return View[T]{}, &BackendMismatchError{Want: expected, Got: b.backend}
	}
	if expected != Host {
		return View[T]{}, &BackendMismatchError{Want: Host, Got: b.backend}
	}

	if b.released {
		return View[T]{}, &ReleasedError{Blob: b.String()}
	}

	data, ok := b.host.([]T)
	if !ok {
		// The tag says T but the storage disagrees; never reinterpret.
		return View[T]{}, &TypeMismatchError{Want: want, Got: b.dtype}
	}
	return View[T]{data: data}, nil
}

// CheckBackend returns a *BackendMismatchError unless b resides on expected.
func CheckBackend(b *Blob, expected Backend) error {
	if b.backend != expected {
		return &BackendMismatchError{Want: expected, Got: b.backend}
	}
	return nil
}

// CheckDType returns a *TypeMismatchError unless b holds elements of want.
func CheckDType(b *Blob, want DType) error {
	if b.dtype != want {
		return &TypeMismatchError{Want: want, Got: b.dtype}
	}
	return nil
}
