// Package blob defines the typed, backend-tagged buffers that a workspace
// produces when it runs a plan.
//
// A Blob is a tagged variant. It is either untyped, or it carries an element
// type (DType), an element count, and storage on one backend:
//
//   - Host: a Go slice owned by the blob.
//   - Accelerator: a handle into a device.Device. The bytes are not
//     addressable from the host; they must be materialized first
//     (see package materialize).
//
// # Access Rules
//
// Storage is never handed out before the tags are checked. AsTyped checks the
// element type first and the backend second, and returns a typed error for
// each mismatch:
//
//	view, err := blob.AsTyped[float32](b, blob.Host)
//	if err != nil {
//	    // *TypeMismatchError or *BackendMismatchError
//	}
//	for i := 0; i < view.Len(); i++ {
//	    _ = view.At(i)
//	}
//
// Reading a blob through the wrong type is always an error, never a
// reinterpretation of its bytes.
package blob
