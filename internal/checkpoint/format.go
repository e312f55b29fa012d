package checkpoint

import (
	"time"

	"github.com/google/uuid"

	"github.com/gridcast/gridcast/internal/quantile"
)

// Format constants.
const (
	MagicBytes      = "GRDC"
	FormatVersion   = 1
	ChecksumSize    = 32 // SHA-256
	FixedHeaderSize = 4 + 4 + 8 + ChecksumSize
	DTypeFloat32    = "float32"
)

// Validation limits.
const (
	MaxHeaderSize    = 16 * 1024 * 1024
	MaxTensorCount   = 10_000
	MaxTensorNameLen = 1024
)

// Header is the JSON header of a checkpoint file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	Model         quantile.Config   `json:"model"`
	RunID         uuid.UUID         `json:"run_id"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TensorMeta locates one parameter in the payload.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "Conv_0/kernel"
	DType  string `json:"dtype"`  // always "float32"
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from the start of the payload
	Size   int64  `json:"size"`   // bytes
}
