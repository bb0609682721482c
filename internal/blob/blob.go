package blob

import (
	"context"
	"fmt"

	"github.com/roach88/planverify/internal/device"
)

// Blob is a named workspace buffer: untyped, or typed storage on one backend.
//
// The zero value is an untyped blob.
type Blob struct {
	dtype   DType
	backend Backend
	n       int

	// host holds a []T matching dtype when backend == Host.
	host any

	// dev and handle locate the storage when backend == Accelerator.
	dev    device.Device
	handle device.Handle

	released bool
}

// NewUntyped returns a blob that exists but holds no typed data.
func NewUntyped() *Blob {
	return &Blob{}
}

// NewHost returns a host-resident blob holding a copy of values.
func NewHost[T Number](values []T) *Blob {
	owned := make([]T, len(values))
	copy(owned, values)
	return &Blob{
		dtype:   DTypeOf[T](),
		backend: Host,
		n:       len(owned),
		host:    owned,
	}
}

// NewDevice wraps an already-uploaded device buffer. The blob takes
// ownership of the handle and frees it on Release.
func NewDevice(dtype DType, n int, dev device.Device, h device.Handle) *Blob {
	return &Blob{
		dtype:   dtype,
		backend: Accelerator,
		n:       n,
		dev:     dev,
		handle:  h,
	}
}

// DType returns the element type tag.
func (b *Blob) DType() DType { return b.dtype }

// Backend returns the backend tag. Untyped blobs report Host.
func (b *Blob) Backend() Backend { return b.backend }

// IsTyped reports whether the blob holds typed data.
func (b *Blob) IsTyped() bool { return b.dtype != Undefined }

// Len returns the element count.
func (b *Blob) Len() int { return b.n }

// Device returns the owning device for accelerator blobs, nil otherwise.
func (b *Blob) Device() device.Device { return b.dev }

// Handle returns the device handle for accelerator blobs.
func (b *Blob) Handle() device.Handle { return b.handle }

// Released reports whether Release has been called.
func (b *Blob) Released() bool { return b.released }

// String describes the blob's tags, e.g. "float32[3]@accelerator".
func (b *Blob) String() string {
	if !b.IsTyped() {
		return "untyped"
	}
	return fmt.Sprintf("%s[%d]@%s", b.dtype, b.n, b.backend)
}

// Release frees the blob's storage. Device buffers are returned to their
// device. Calling Release more than once is a no-op.
func (b *Blob) Release(ctx context.Context) error {
	if b.released {
		return nil
	}
	b.released = true
	b.host = nil

	if b.backend == Accelerator && b.dev != nil {
		if err := b.dev.Free(ctx, b.handle); err != nil {
			return fmt.Errorf("release %s: %w", b, err)
		}
	}
	return nil
}

// ElementCount returns the number of elements in b. Untyped blobs have none.
func ElementCount(b *Blob) int {
	return b.n
}
