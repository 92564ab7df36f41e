package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Codec errors. Every failure returned by this package wraps one of them, so
// callers can branch with errors.Is.
var (
	ErrTruncatedBuffer      = errors.New("tlv8: truncated buffer")
	ErrUnknownTag           = errors.New("tlv8: unknown tag")
	ErrUnsupportedType      = errors.New("tlv8: unsupported type")
	ErrInvalidText          = errors.New("tlv8: invalid UTF-8 text")
	ErrUnknownEnumValue     = errors.New("tlv8: unknown enum value")
	ErrMissingRequiredField = errors.New("tlv8: missing required field")
	ErrValueOutOfRange      = errors.New("tlv8: value out of range")
	ErrInvalidValue         = errors.New("tlv8: invalid value")
	ErrUnknownRecord        = errors.New("tlv8: unknown record type")
)

// FieldError represents an encoding/decoding error with a field path.
type FieldError struct {
	FieldPath []string // e.g., ["configurations", "[1]", "attributes", "[0]", "frame_rate"]
	Err       error    // underlying error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if len(e.FieldPath) == 0 {
		return e.Err.Error()
	}

	return fmt.Sprintf("error at field path %s: %v", strings.Join(e.FieldPath, "."), e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for compatibility.
func (e *FieldError) Is(target error) bool {
	_, ok := target.(*FieldError)
	return ok
}

// wrapWithField wraps an error with a field name
func wrapWithField(err error, fieldName string) error {
	if err == nil {
		return nil
	}

	var fe *FieldError
	if errors.As(err, &fe) && fe == err {
		return &FieldError{
			FieldPath: append([]string{fieldName}, fe.FieldPath...),
			Err:       fe.Err,
		}
	}

	return &FieldError{
		FieldPath: []string{fieldName},
		Err:       err,
	}
}

// wrapWithIndex wraps an error with a sequence item index
func wrapWithIndex(err error, index int) error {
	return wrapWithField(err, fmt.Sprintf("[%d]", index))
}
