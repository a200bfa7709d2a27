package amf

import (
	"errors"
	"fmt"
)

// Error kinds reported by the codecs. Every failure returned by this module wraps
// exactly one of them, so callers test with errors.Is.
var (
	ErrTruncatedInput            = errors.New("truncated input")
	ErrInvalidMarker             = errors.New("invalid type marker")
	ErrInvalidReference          = errors.New("invalid reference")
	ErrInvalidUTF8               = errors.New("invalid UTF-8 string")
	ErrValueOutOfRange           = errors.New("value out of range")
	ErrNestingTooDeep            = errors.New("nesting too deep")
	ErrUnsupportedExternalizable = errors.New("unsupported externalizable class")
	ErrUnterminatedObject        = fmt.Errorf("unterminated object: %w", ErrTruncatedInput)
)

// Error carries an error kind together with the byte offset where it was detected.
// On encode the offset is the number of bytes already written.
type Error struct {
	Kind   error
	Offset int
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("amf: %v at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("amf: %v at offset %d: %s", e.Kind, e.Offset, e.Detail)
}

// Unwrap returns the error kind.
func (e *Error) Unwrap() error {
	return e.Kind
}

// Errorf builds an *Error of the given kind.
func Errorf(kind error, offset int, format string, args ...interface{}) *Error {
	return &Error{
		Kind:   kind,
		Offset: offset,
		Detail: fmt.Sprintf(format, args...),
	}
}

// OffsetOf returns the offset recorded in err, or -1 if err carries none.
func OffsetOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Offset
	}
	return -1
}
