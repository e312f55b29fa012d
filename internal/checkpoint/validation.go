package checkpoint

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// validateTensors checks names, shapes and payload regions. Corrupt
// offsets could otherwise alias or read past the payload.
func validateTensors(tensors []TensorMeta, payloadSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	for _, t := range tensors {
		if err := validateName(t.Name); err != nil {
			return err
		}
		if t.DType != DTypeFloat32 {
			return &ValidationError{Type: "unsupported_dtype", Tensor: t.Name, Details: t.DType}
		}
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset+t.Size > payloadSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > payload %d", t.Offset, t.Size, payloadSize),
			}
		}
		n := int64(1)
		for _, d := range t.Shape {
			if d <= 0 {
				return &ValidationError{Type: "invalid_shape", Tensor: t.Name, Details: fmt.Sprintf("%v", t.Shape)}
			}
			n *= int64(d)
		}
		if n*4 != t.Size {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  t.Name,
				Details: fmt.Sprintf("shape %v needs %d bytes, header says %d", t.Shape, n*4, t.Size),
			}
		}
	}

	sorted := slices.Clone(tensors)
	slices.SortFunc(sorted, func(a, b TensorMeta) int {
		return cmp.Compare(a.Offset, b.Offset)
	})
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Offset+prev.Size > cur.Offset {
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  cur.Name,
				Details: fmt.Sprintf("overlaps %q", prev.Name),
			}
		}
	}
	return nil
}

// validateName rejects empty, oversized and control-character names.
// Parameter names contain '/' as a scope separator.
func validateName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name[:32] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	case strings.ContainsRune(name, 0):
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains null byte"}
	}
	return nil
}
