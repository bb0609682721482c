// Package materialize moves blob data across the host/accelerator boundary.
//
// ToHost is the only way harness code reads accelerator-resident data. It is
// transparent for host blobs (a zero-copy view) and performs a synchronous
// device-to-host download otherwise. Either way the caller gets a HostBuffer
// that is complete and safe to read from any goroutine.
package materialize

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/roach88/planverify/internal/blob"
	"github.com/roach88/planverify/internal/device"
)

// TransferError is returned when data cannot cross the backend boundary.
type TransferError struct {
	Blob   string // blob description, e.g. "float32[3]@accelerator"
	Device string // device name, empty when no device was attached
	Op     string // "download" or "upload"
	Err    error
}

func (e *TransferError) Error() string {
	dev := e.Device
	if dev == "" {
		dev = "<none>"
	}
	return fmt.Sprintf("%s %s via %s: %v", e.Op, e.Blob, dev, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// ErrNoDevice is wrapped by TransferError when an accelerator blob has no
// device attached, or an upload is requested without one.
var ErrNoDevice = errors.New("no accelerator device")

// HostBuffer is a host-resident, read-only element sequence.
type HostBuffer[T blob.Number] struct {
	values []T
	owned  bool
}

// Len returns the element count.
func (h HostBuffer[T]) Len() int { return len(h.values) }

// At returns element i.
func (h HostBuffer[T]) At(i int) T { return h.values[i] }

// Values returns the elements. When Owned is false the slice aliases the
// source blob and must not be modified.
func (h HostBuffer[T]) Values() []T { return h.values }

// Owned reports whether the buffer was produced by a transfer (true) or is a
// view over host blob storage (false).
func (h HostBuffer[T]) Owned() bool { return h.owned }

// ToHost returns b's elements in host memory.
//
// The element type is checked before anything is read. Host blobs are
// returned as a view over their own storage. Accelerator blobs are
// downloaded into a new buffer whose type and element count match the
// source exactly; b itself is never modified.
func ToHost[T blob.Number](ctx context.Context, b *blob.Blob) (HostBuffer[T], error) {
	if err := blob.CheckDType(b, blob.DTypeOf[T]()); err != nil {
		return HostBuffer[T]{}, err
	}

	if b.Backend() == blob.Host {
		view, err := blob.AsTyped[T](b, blob.Host)
		if err != nil {
			return HostBuffer[T]{}, err
		}
		return HostBuffer[T]{values: view.Values()}, nil
	}

	terr := &TransferError{Blob: b.String(), Op: "download"}
	dev := b.Device()
	if dev == nil {
		terr.Err = ErrNoDevice
		return HostBuffer[T]{}, terr
	}
	terr.Device = dev.Name()

	if b.Released() {
		terr.Err = &blob.ReleasedError{Blob: b.String()}
		return HostBuffer[T]{}, terr
	}

	raw, err := dev.Download(ctx, b.Handle())
	if err != nil {
		terr.Err = err
		return HostBuffer[T]{}, terr
	}

	values, err := decode[T](raw, b.Len())
	if err != nil {
		terr.Err = err
		return HostBuffer[T]{}, terr
	}

	return HostBuffer[T]{values: values, owned: true}, nil
}

// Upload copies values onto dev and returns an accelerator blob that owns the
// new device buffer.
func Upload[T blob.Number](ctx context.Context, dev device.Device, values []T) (*blob.Blob, error) {
	dtype := blob.DTypeOf[T]()
	terr := &TransferError{Blob: fmt.Sprintf("%s[%d]@host", dtype, len(values)), Op: "upload"}
	if dev == nil {
		terr.Err = ErrNoDevice
		return nil, terr
	}
	terr.Device = dev.Name()

	raw, err := encode(values)
	if err != nil {
		terr.Err = err
		return nil, terr
	}

	h, err := dev.Upload(ctx, raw)
	if err != nil {
		terr.Err = err
		return nil, terr
	}

	return blob.NewDevice(dtype, len(values), dev, h), nil
}

// encode serializes values little-endian, the layout every device buffer uses.
func encode[T blob.Number](values []T) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(values) * blob.DTypeOf[T]().Size())
	if err := binary.Write(&buf, binary.LittleEndian, values); err != nil {
		return nil, fmt.Errorf("encode %d elements: %w", len(values), err)
	}
	return buf.Bytes(), nil
}

// decode deserializes exactly n elements; any other byte length is an error.
func decode[T blob.Number](raw []byte, n int) ([]T, error) {
	size := blob.DTypeOf[T]().Size()
	if len(raw) != n*size {
		return nil, fmt.Errorf("size mismatch: device returned %d bytes, expected %d (%d x %d)", len(raw), n*size, n, size)
	}

	out := make([]T, n)
	if n == 0 {
		return out, nil
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("decode %d elements: %w", n, err)
	}
	return out, nil
}
