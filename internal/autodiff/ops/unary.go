package ops

import "github.com/gridcast/gridcast/internal/tensor"

// unaryOp holds the input and result of a one-input op.
type unaryOp struct {
	in, out *tensor.RawTensor
}

// Inputs returns [in].
func (op unaryOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.in}
}

// Output returns the op result.
func (op unaryOp) Output() *tensor.RawTensor {
	return op.out
}

// ReLUOp records out = max(0, x). The subgradient at 0 is 0.
type ReLUOp struct{ unaryOp }

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(x, out *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{unaryOp{x, out}}
}

// Backward masks grad with x > 0.
func (op *ReLUOp) Backward(grad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	dx := tensor.MustRaw(op.in.Shape(), op.in.Device())
	dst, g := dx.AsFloat32(), grad.AsFloat32()
	for i, v := range op.in.AsFloat32() {
		if v > 0 {
			dst[i] = g[i]
		}
	}
	return []*tensor.RawTensor{dx}
}

// ReshapeOp records a reshape, such as the flatten between the conv stack
// and the dense head.
type ReshapeOp struct{ unaryOp }

// NewReshapeOp creates a new ReshapeOp.
func NewReshapeOp(in, out *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{unaryOp{in, out}}
}

// Backward reshapes grad back to the input shape.
func (op *ReshapeOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(grad, op.in.Shape())}
}

// TransposeOp records out = transpose(in, axes).
type TransposeOp struct {
	unaryOp
	axes []int
}

// NewTransposeOp creates a new TransposeOp. axes must be the full
// permutation used in the forward pass.
func NewTransposeOp(in, out *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{unaryOp: unaryOp{in, out}, axes: axes}
}

// Backward applies the inverse permutation to grad.
func (op *TransposeOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, ax := range op.axes {
		inverse[ax] = i
	}
	return []*tensor.RawTensor{backend.Transpose(grad, inverse...)}
}
