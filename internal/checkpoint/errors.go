package checkpoint

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrInvalidMagic       = errors.New("checkpoint: invalid magic bytes")
	ErrUnsupportedVersion = errors.New("checkpoint: unsupported format version")
	ErrChecksumMismatch   = errors.New("checkpoint: checksum mismatch, file may be corrupted")
	ErrHeaderTooLarge     = errors.New("checkpoint: header exceeds maximum size")
	ErrCorrupt            = errors.New("checkpoint: malformed contents")
)

// ValidationError describes a malformed tensor entry.
type ValidationError struct {
	Type    string // e.g. "out_of_bounds", "size_mismatch"
	Tensor  string
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap makes every ValidationError match ErrCorrupt.
func (e *ValidationError) Unwrap() error {
	return ErrCorrupt
}
