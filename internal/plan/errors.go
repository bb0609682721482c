package plan

import (
	"errors"
	"fmt"
)

// LoadErrorCode categorizes plan load failures.
type LoadErrorCode string

const (
	// ErrCodeNotFound indicates the plan file does not exist.
	ErrCodeNotFound LoadErrorCode = "not_found"

	// ErrCodeReadFailed indicates the file exists but could not be read.
	ErrCodeReadFailed LoadErrorCode = "read_failed"

	// ErrCodeParseFailed indicates the bytes are not a well-formed plan
	// document in the chosen format.
	ErrCodeParseFailed LoadErrorCode = "parse_failed"

	// ErrCodeUnsupportedFormat indicates an unknown file extension.
	ErrCodeUnsupportedFormat LoadErrorCode = "unsupported_format"

	// ErrCodeInvalid indicates a well-formed document that does not describe
	// a valid plan.
	ErrCodeInvalid LoadErrorCode = "invalid"
)

// LoadError is returned by Load for every failure. Load never returns a
// partial plan alongside it.
type LoadError struct {
	Path string
	Code LoadErrorCode
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load plan %s: %s: %v", e.Path, e.Code, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a LoadError for a missing file.
func IsNotFound(err error) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code == ErrCodeNotFound
	}
	return false
}
