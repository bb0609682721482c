package device

import (
	"context"
	"errors"
)

// Handle identifies a buffer allocated on a Device.
type Handle int64

// Device is an accelerator backend that owns buffers outside host memory.
//
// Implementations must be safe for concurrent use.
type Device interface {
	// Name identifies the device in logs and error messages.
	Name() string

	// Upload copies data into a newly allocated device buffer.
	Upload(ctx context.Context, data []byte) (Handle, error)

	// Download copies a device buffer into newly allocated host memory.
	Download(ctx context.Context, h Handle) ([]byte, error)

	// Free releases a device buffer. Freeing an unknown handle is an error.
	Free(ctx context.Context, h Handle) error

	// Close releases every buffer and the device itself.
	Close() error
}

var (
	// ErrClosed is returned by every operation on a closed device.
	ErrClosed = errors.New("device closed")

	// ErrUnknownHandle is returned when a handle was never allocated or
	// has already been freed.
	ErrUnknownHandle = errors.New("unknown device handle")

	// ErrOutOfMemory is returned when an upload would exceed the device
	// capacity.
	ErrOutOfMemory = errors.New("device out of memory")
)
