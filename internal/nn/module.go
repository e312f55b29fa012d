// Package nn implements the neural network modules used by gridcast.
//
// Modules are stateless descriptions of a layer: they declare the
// parameters they need for a given input shape and compute outputs from an
// explicit Params value. Nothing is stored inside a module between calls,
// so the same network can be evaluated on different backends (a plain CPU
// backend for inference, an autodiff-wrapped one for training) and with
// different parameter sets.
//
// Building blocks:
//   - Module interface: Base interface for all NN components
//   - Params: Ordered, immutable named parameter arrays
//   - Conv1D, Linear: Convolution and fully connected layers
//   - ReLU, Dropout, Flatten: Parameter-free layers
//   - Sequential: Container for stacking layers
//   - PinballLoss: Quantile loss
package nn

import (
	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
)

// Context carries per-call evaluation settings through Forward.
type Context struct {
	// Deterministic disables dropout. Key is ignored when set.
	Deterministic bool
	// Key seeds stochastic layers when Deterministic is false.
	Key rng.Key
}

// Initializer creates an initial parameter array of the given shape.
type Initializer func(key rng.Key, shape tensor.Shape) *tensor.RawTensor

// ParamSpec declares one parameter array of a module.
type ParamSpec struct {
	Name  string
	Shape tensor.Shape
	Init  Initializer
}

// Module is the base interface for all neural network components.
//
// Modules can be composed to build complex architectures:
//
//	net := nn.NewSequential[B](
//	    nn.NewConv1D[B]("Conv_0", 30, 10),
//	    nn.NewReLU[B](),
//	    nn.NewFlatten[B](),
//	    nn.NewLinear[B]("Dense_0", 1),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Name returns the module name; it prefixes the module's parameter names.
	Name() string

	// Specs returns the parameters the module needs for inputs of shape
	// in, and the output shape. Incompatible inputs produce an error
	// wrapping tensor.ErrShapeMismatch.
	Specs(in tensor.Shape) ([]ParamSpec, tensor.Shape, error)

	// Forward computes the module output. It panics with a
	// *tensor.ShapeError on shape misuse; callers validate with Specs
	// first or recover with tensor.Guard.
	Forward(input *tensor.Tensor[B], params Params, ctx Context) *tensor.Tensor[B]
}

// param wraps a parameter array as a tensor on input's backend.
func param[B tensor.Backend](params Params, name string, like *tensor.Tensor[B]) *tensor.Tensor[B] {
	return tensor.New(params.Must(name), like.Backend())
}
