package nn

import (
	"fmt"

	"github.com/gridcast/gridcast/internal/tensor"
)

// Conv1D is a stride-1 1D convolution with SAME padding over
// channels-last inputs.
//
// Input shape:  [N, L, C_in]
// Output shape: [N, L, filters]
//
// Parameters (C_in is inferred from the input):
//   - kernel: [kernel_size, C_in, filters], LeCun normal
//   - bias:   [filters], zeros
//
// The window length must be at least kernel_size.
type Conv1D[B tensor.Backend] struct {
	name       string
	filters    int
	kernelSize int
	pad        tensor.Padding1D
}

// NewConv1D creates a convolution layer.
func NewConv1D[B tensor.Backend](name string, filters, kernelSize int) *Conv1D[B] {
	return &Conv1D[B]{
		name:       name,
		filters:    filters,
		kernelSize: kernelSize,
		pad:        tensor.SamePadding(kernelSize),
	}
}

// Name returns the layer name.
func (c *Conv1D[B]) Name() string {
	return c.name
}

// KernelSize returns the receptive field width.
func (c *Conv1D[B]) KernelSize() int {
	return c.kernelSize
}

// Specs declares "<name>/kernel" and "<name>/bias".
func (c *Conv1D[B]) Specs(in tensor.Shape) ([]ParamSpec, tensor.Shape, error) {
	if len(in) != 3 {
		return nil, nil, &tensor.ShapeError{Op: c.name, Details: fmt.Sprintf("input must be 3D [N, L, C], got %v", in)}
	}
	n, l, cIn := in[0], in[1], in[2]
	if l < c.kernelSize {
		return nil, nil, &tensor.ShapeError{Op: c.name, Details: fmt.Sprintf("window length %d shorter than kernel %d", l, c.kernelSize)}
	}
	if cIn <= 0 {
		return nil, nil, &tensor.ShapeError{Op: c.name, Details: fmt.Sprintf("input has %d channels", cIn)}
	}

	fanIn := c.kernelSize * cIn
	specs := []ParamSpec{
		{Name: c.name + "/kernel", Shape: tensor.Shape{c.kernelSize, cIn, c.filters}, Init: LeCunNormal(fanIn)},
		{Name: c.name + "/bias", Shape: tensor.Shape{c.filters}, Init: Zeros},
	}
	return specs, tensor.Shape{n, l, c.filters}, nil
}

// Forward convolves the input and adds the per-filter bias.
func (c *Conv1D[B]) Forward(input *tensor.Tensor[B], params Params, _ Context) *tensor.Tensor[B] {
	kernel := param(params, c.name+"/kernel", input)
	bias := param(params, c.name+"/bias", input)
	return input.Conv1D(kernel, c.pad).Add(bias)
}
