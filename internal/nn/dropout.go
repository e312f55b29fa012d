package nn

import (
	"fmt"

	"github.com/gridcast/gridcast/internal/tensor"
)

// Dropout zeroes each element with probability rate during training and
// scales the kept elements by 1/(1-rate), so the expected activation is
// unchanged.
//
// In deterministic mode it is the identity. Otherwise the mask is drawn
// from ctx.Key folded with the layer name: two dropout layers called with
// the same key draw different masks, and the same key always reproduces
// the same masks.
type Dropout[B tensor.Backend] struct {
	name string
	rate float64
}

// NewDropout creates a dropout layer. rate must be in [0, 1).
func NewDropout[B tensor.Backend](name string, rate float64) *Dropout[B] {
	return &Dropout[B]{name: name, rate: rate}
}

// Name returns the layer name.
func (d *Dropout[B]) Name() string {
	return d.name
}

// Rate returns the drop probability.
func (d *Dropout[B]) Rate() float64 {
	return d.rate
}

// Specs returns no parameters and the unchanged input shape.
func (d *Dropout[B]) Specs(in tensor.Shape) ([]ParamSpec, tensor.Shape, error) {
	return nil, in.Clone(), nil
}

// Forward applies the dropout mask. It panics if a mask is needed and
// ctx.Key is the zero key.
func (d *Dropout[B]) Forward(input *tensor.Tensor[B], _ Params, ctx Context) *tensor.Tensor[B] {
	if ctx.Deterministic || d.rate == 0 {
		return input
	}
	if err := ctx.Key.Check(); err != nil {
		panic(fmt.Sprintf("%s: %v", d.name, err))
	}

	mask := tensor.MustRaw(input.Shape(), input.Raw().Device())
	keep := 1 - d.rate
	scale := float32(1 / keep)
	r := ctx.Key.FoldString(d.name).Rand()
	data := mask.AsFloat32()
	for i := range data {
		if r.Float64() < keep {
			data[i] = scale
		}
	}
	return input.Mul(tensor.New(mask, input.Backend()))
}
