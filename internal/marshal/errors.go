package marshal

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupported = errors.New("unsupported value kind")
	ErrCycle       = errors.New("cyclic structure")
	ErrDepth       = errors.New("structure too deep")
	ErrEncoding    = errors.New("invalid string encoding")
	ErrTooLarge    = errors.New("structure too large")
)

// Error reports a failed conversion and where in the value it happened.
type Error struct {
	Path   string // $ for the root, $.a[2].b for nested values
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("marshal %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("marshal %s: %v: %s", e.Path, e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(path string, err error, detail string) *Error {
	return &Error{Path: path, Detail: detail, Err: err}
}
