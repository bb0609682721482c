package blob

import (
	"fmt"
	"reflect"
	"strings"
)

// Number is the set of element types a typed blob may hold.
type Number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

// DType tags the element type of a blob.
type DType int

const (
	// Undefined marks an untyped blob (created but never filled).
	Undefined DType = iota
	Float32
	Float64
	Int32
	Int64
)

// String returns the lower-case dtype name used in plan files and reports.
func (d DType) String() string {
	switch d {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	default:
		return "undefined"
	}
}

// Size returns the element width in bytes (0 for Undefined).
func (d DType) Size() int {
	switch d {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	default:
		return 0
	}
}

// ParseDType parses a dtype name. Matching is case-insensitive and the
// empty string is rejected.
func ParseDType(s string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float32", "float":
		return Float32, nil
	case "float64", "double":
		return Float64, nil
	case "int32", "int":
		return Int32, nil
	case "int64", "long":
		return Int64, nil
	default:
		return Undefined, fmt.Errorf("unknown dtype %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d DType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DType) UnmarshalText(text []byte) error {
	parsed, err := ParseDType(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DTypeOf returns the tag for the Go element type T. Named types are tagged
// by their underlying kind.
func DTypeOf[T Number]() DType {
	switch reflect.TypeOf((*T)(nil)).Elem().Kind() {
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	case reflect.Int32:
		return Int32
	case reflect.Int64:
		return Int64
	default:
		return Undefined
	}
}

// Backend tags where a blob's storage lives.
type Backend int

const (
	Host Backend = iota
	Accelerator
)

// String returns "host" or "accelerator".
func (b Backend) String() string {
	if b == Accelerator {
		return "accelerator"
	}
	return "host"
}

// ParseBackend parses a backend name. "cpu" is accepted for host, and "gpu"
// and "cuda" for accelerator. The empty string means host.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "host", "cpu":
		return Host, nil
	case "accelerator", "gpu", "cuda", "device":
		return Accelerator, nil
	default:
		return Host, fmt.Errorf("unknown backend %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b Backend) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *Backend) UnmarshalText(text []byte) error {
	parsed, err := ParseBackend(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
