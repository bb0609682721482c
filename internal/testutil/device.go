package testutil

import (
	"context"
	"sync"

	"github.com/roach88/planverify/internal/device"
)

// FakeDevice is a map-backed device.Device with failure injection.
//
// Set the Fail* fields before use to make the matching call return that
// error. Thread-safety: safe for concurrent use.
type FakeDevice struct {
	FailUpload   error
	FailDownload error
	FailClose    error

	mu      sync.Mutex
	next    device.Handle
	buffers map[device.Handle][]byte
	closed  bool
	closes  int
}

// NewFakeDevice creates an empty fake device.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{buffers: make(map[device.Handle][]byte)}
}

func (d *FakeDevice) Name() string { return "fake-accelerator:0" }

func (d *FakeDevice) Upload(_ context.Context, data []byte) (device.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, device.ErrClosed
	}
	if d.FailUpload != nil {
		return 0, d.FailUpload
	}
	d.next++
	d.buffers[d.next] = append([]byte(nil), data...)
	return d.next, nil
}

func (d *FakeDevice) Download(_ context.Context, h device.Handle) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, device.ErrClosed
	}
	if d.FailDownload != nil {
		return nil, d.FailDownload
	}
	data, ok := d.buffers[h]
	if !ok {
		return nil, device.ErrUnknownHandle
	}
	return append([]byte(nil), data...), nil
}

func (d *FakeDevice) Free(_ context.Context, h device.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return device.ErrClosed
	}
	if _, ok := d.buffers[h]; !ok {
		return device.ErrUnknownHandle
	}
	delete(d.buffers, h)
	return nil
}

func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	d.closed = true
	return d.FailClose
}

// Resident returns the number of buffers not yet freed.
func (d *FakeDevice) Resident() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// Closed reports whether Close has been called at least once.
func (d *FakeDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// DeviceFactory counts how many devices it opened and remembers the last one.
type DeviceFactory struct {
	// Err, when set, is returned instead of opening a device.
	Err error

	// Configure, when set, is applied to each new device.
	Configure func(*FakeDevice)

	mu     sync.Mutex
	opened int
	last   *FakeDevice
}

// Open satisfies the harness device factory signature.
func (f *DeviceFactory) Open() (device.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	if f.Err != nil {
		return nil, f.Err
	}
	d := NewFakeDevice()
	if f.Configure != nil {
		f.Configure(d)
	}
	f.last = d
	return d, nil
}

// Opened returns the number of Open calls.
func (f *DeviceFactory) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// Last returns the most recently opened device, or nil.
func (f *DeviceFactory) Last() *FakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}
