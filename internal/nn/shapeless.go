package nn

import (
	"github.com/gridcast/gridcast/internal/tensor"
)

// ReLU is max(0, x) as a layer.
type ReLU[B tensor.Backend] struct{}

func NewReLU[B tensor.Backend]() *ReLU[B] { return &ReLU[B]{} }

func (*ReLU[B]) Name() string { return "ReLU" }

func (*ReLU[B]) Specs(in tensor.Shape) ([]ParamSpec, tensor.Shape, error) {
	return nil, in.Clone(), nil
}

func (*ReLU[B]) Forward(input *tensor.Tensor[B], _ Params, _ Context) *tensor.Tensor[B] {
	return input.ReLU()
}

// Flatten keeps the batch axis and folds the rest into one:
// [N, d1, d2, ...] -> [N, d1*d2*...].
type Flatten[B tensor.Backend] struct{}

func NewFlatten[B tensor.Backend]() *Flatten[B] { return &Flatten[B]{} }

func (*Flatten[B]) Name() string { return "Flatten" }

func (*Flatten[B]) Specs(in tensor.Shape) ([]ParamSpec, tensor.Shape, error) {
	if len(in) == 0 {
		return nil, nil, &tensor.ShapeError{Op: "Flatten", Details: "input needs a batch axis"}
	}
	return nil, flat(in), nil
}

func (*Flatten[B]) Forward(input *tensor.Tensor[B], _ Params, _ Context) *tensor.Tensor[B] {
	s := flat(input.Shape())
	return input.Reshape(s[0], s[1])
}

func flat(s tensor.Shape) tensor.Shape {
	return tensor.Shape{s[0], tensor.Shape(s[1:]).NumElements()}
}
