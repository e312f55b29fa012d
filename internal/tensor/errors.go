package tensor

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is wrapped by every error caused by incompatible tensor shapes.
var ErrShapeMismatch = errors.New("shape mismatch")

// ShapeError describes a shape incompatibility detected by an operation.
//
// Backend kernels panic with a *ShapeError (misuse is a programming error at
// that level); Guard turns such panics back into ordinary errors at API
// boundaries.
type ShapeError struct {
	Op      string // Operation that detected the problem (e.g., "conv1d")
	Details string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrShapeMismatch, e.Details)
}

// Unwrap makes errors.Is(err, ErrShapeMismatch) work.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// Panicf panics with a *ShapeError for the given operation.
func Panicf(op, format string, args ...any) {
	panic(&ShapeError{Op: op, Details: fmt.Sprintf(format, args...)})
}

// Guard runs f and converts a *ShapeError panic into a returned error.
// Any other panic is re-raised unchanged.
func Guard(f func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if se, ok := r.(*ShapeError); ok {
			err = se
			return
		}
		panic(r)
	}()
	f()
	return nil
}
