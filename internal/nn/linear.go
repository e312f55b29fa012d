package nn

import (
	"fmt"

	"github.com/gridcast/gridcast/internal/tensor"
)

// Linear is a fully connected layer: y = x @ W + b.
//
// Input features are inferred from the input shape:
//   - kernel: [in_features, features], LeCun normal
//   - bias:   [features], zeros
//
// Input shape: [batch_size, in_features]
// Output shape: [batch_size, features]
//
// Example:
//
//	dense := nn.NewLinear[B]("Dense_0", 1024)
//	output := dense.Forward(input, params, ctx) // [N, 1024]
type Linear[B tensor.Backend] struct {
	name     string
	features int
}

// NewLinear creates a fully connected layer with the given output width.
func NewLinear[B tensor.Backend](name string, features int) *Linear[B] {
	return &Linear[B]{name: name, features: features}
}

// Name returns the layer name.
func (l *Linear[B]) Name() string {
	return l.name
}

// Features returns the output width.
func (l *Linear[B]) Features() int {
	return l.features
}

// Specs declares "<name>/kernel" and "<name>/bias".
func (l *Linear[B]) Specs(in tensor.Shape) ([]ParamSpec, tensor.Shape, error) {
	if len(in) != 2 {
		return nil, nil, &tensor.ShapeError{Op: l.name, Details: fmt.Sprintf("input must be 2D [N, features], got %v", in)}
	}
	fanIn := in[1]
	specs := []ParamSpec{
		{Name: l.name + "/kernel", Shape: tensor.Shape{fanIn, l.features}, Init: LeCunNormal(fanIn)},
		{Name: l.name + "/bias", Shape: tensor.Shape{l.features}, Init: Zeros},
	}
	return specs, tensor.Shape{in[0], l.features}, nil
}

// Forward computes y = x @ W + b. The bias broadcasts over the batch.
func (l *Linear[B]) Forward(input *tensor.Tensor[B], params Params, _ Context) *tensor.Tensor[B] {
	kernel := param(params, l.name+"/kernel", input)
	bias := param(params, l.name+"/bias", input)
	return input.MatMul(kernel).Add(bias)
}
