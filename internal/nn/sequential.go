package nn

import (
	"fmt"

	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
)

// Sequential feeds each layer's output to the next:
//
//	net := nn.NewSequential[B](
//	    nn.NewConv1D[B]("Conv_0", 30, 10),
//	    nn.NewReLU[B](),
//	    nn.NewFlatten[B](),
//	    nn.NewLinear[B]("Dense_0", 1),
//	)
//	params, _ := net.Init(key, tensor.Shape{1, 24, 1})
//	out := net.Forward(x, params, nn.Context{Deterministic: true})
type Sequential[B tensor.Backend] struct {
	layers []Module[B]
}

func NewSequential[B tensor.Backend](layers ...Module[B]) *Sequential[B] {
	return &Sequential[B]{layers: layers}
}

func (s *Sequential[B]) Name() string { return "Sequential" }

// Add appends a layer.
func (s *Sequential[B]) Add(layer Module[B]) {
	s.layers = append(s.layers, layer)
}

// Specs threads the input shape through every layer and concatenates their
// parameter specs in layer order.
func (s *Sequential[B]) Specs(in tensor.Shape) (specs []ParamSpec, out tensor.Shape, err error) {
	out = in
	for i, layer := range s.layers {
		var own []ParamSpec
		if own, out, err = layer.Specs(out); err != nil {
			return nil, nil, fmt.Errorf("layer %d (%s): %w", i, layer.Name(), err)
		}
		specs = append(specs, own...)
	}
	return specs, out, nil
}

// Init draws every parameter array from key folded with the array's name,
// so adding or removing a layer leaves the other arrays unchanged.
func (s *Sequential[B]) Init(key rng.Key, in tensor.Shape) (Params, error) {
	if err := key.Check(); err != nil {
		return Params{}, err
	}
	specs, _, err := s.Specs(in)
	if err != nil {
		return Params{}, err
	}
	entries := make([]Param, 0, len(specs))
	for _, spec := range specs {
		entries = append(entries, Param{Name: spec.Name, Value: spec.Init(key.FoldString(spec.Name), spec.Shape)})
	}
	return NewParams(entries...)
}

func (s *Sequential[B]) Forward(x *tensor.Tensor[B], params Params, ctx Context) *tensor.Tensor[B] {
	for _, layer := range s.layers {
		x = layer.Forward(x, params, ctx)
	}
	return x
}
