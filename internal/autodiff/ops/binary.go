package ops

import "github.com/gridcast/gridcast/internal/tensor"

// binaryOp holds the operands and result of a two-input op.
type binaryOp struct {
	a, b, out *tensor.RawTensor
}

// Inputs returns [a, b].
func (op binaryOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.a, op.b}
}

// Output returns the op result.
func (op binaryOp) Output() *tensor.RawTensor {
	return op.out
}

// AddOp records out = a + b. A broadcast operand (a bias [C] added to
// activations [N, L, C]) receives the gradient summed over the broadcast
// axes.
type AddOp struct{ binaryOp }

// NewAddOp creates a new AddOp.
func NewAddOp(a, b, out *tensor.RawTensor) *AddOp {
	return &AddOp{binaryOp{a, b, out}}
}

// Backward passes the gradient through to both operands.
func (op *AddOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(grad, op.a.Shape(), backend),
		reduceBroadcast(grad, op.b.Shape(), backend),
	}
}

// SubOp records out = a - b.
type SubOp struct{ binaryOp }

// NewSubOp creates a new SubOp.
func NewSubOp(a, b, out *tensor.RawTensor) *SubOp {
	return &SubOp{binaryOp{a, b, out}}
}

// Backward returns grad for a and -grad for b.
func (op *SubOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(grad, op.a.Shape(), backend),
		reduceBroadcast(negate(grad), op.b.Shape(), backend),
	}
}

// MulOp records out = a * b. Dropout is a MulOp against a scaled mask.
type MulOp struct{ binaryOp }

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, out *tensor.RawTensor) *MulOp {
	return &MulOp{binaryOp{a, b, out}}
}

// Backward returns grad*b for a and grad*a for b.
func (op *MulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(grad, op.b), op.a.Shape(), backend),
		reduceBroadcast(backend.Mul(grad, op.a), op.b.Shape(), backend),
	}
}

// MatMulOp records out[M, N] = a[M, K] @ b[K, N], the dense layers.
//
//	dA = grad @ b^T
//	dB = a^T @ grad
type MatMulOp struct{ binaryOp }

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, out *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{binaryOp{a, b, out}}
}

// Backward computes both operand gradients with two GEMMs.
func (op *MatMulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.MatMul(grad, backend.Transpose(op.b)),
		backend.MatMul(backend.Transpose(op.a), grad),
	}
}
