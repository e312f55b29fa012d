// Package autodiff provides tape-based reverse-mode differentiation.
//
// AutodiffBackend decorates another backend: every differentiable call is
// forwarded to it and logged on a GradientTape, and Backward replays the
// tape in reverse.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x, _ := tensor.FromSlice([]float32{2.0}, tensor.Shape{1}, backend)
//	y := x.Mul(x) // y = x²
//	grads := autodiff.Backward(y, backend)
//	fmt.Println(grads[x.Raw()].AsFloat32()) // dy/dx = 2x = [4]
package autodiff

import (
	"github.com/gridcast/gridcast/internal/autodiff/ops"
	"github.com/gridcast/gridcast/internal/tensor"
)

// AutodiffBackend is a tensor.Backend that computes with inner and logs
// every differentiable call on its tape. It owns one tape, so concurrent
// recording through the same backend is not allowed.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New wraps backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// record logs op on the tape and returns its output.
func (b *AutodiffBackend[B]) record(op ops.Operation) *tensor.RawTensor {
	b.tape.Record(op)
	return op.Output()
}

func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewAddOp(x, y, b.inner.Add(x, y)))
}

func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewSubOp(x, y, b.inner.Sub(x, y)))
}

func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewMulOp(x, y, b.inner.Mul(x, y)))
}

func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewMatMulOp(x, y, b.inner.MatMul(x, y)))
}

func (b *AutodiffBackend[B]) Conv1D(input, kernel *tensor.RawTensor, pad tensor.Padding1D) *tensor.RawTensor {
	return b.record(ops.NewConv1DOp(input, kernel, b.inner.Conv1D(input, kernel, pad), pad))
}

// The convolution adjoints only run inside Backward, while the tape is
// paused, so they pass straight through.

func (b *AutodiffBackend[B]) Conv1DInputBackward(input, kernel, grad *tensor.RawTensor, pad tensor.Padding1D) *tensor.RawTensor {
	return b.inner.Conv1DInputBackward(input, kernel, grad, pad)
}

func (b *AutodiffBackend[B]) Conv1DKernelBackward(input, kernel, grad *tensor.RawTensor, pad tensor.Padding1D) *tensor.RawTensor {
	return b.inner.Conv1DKernelBackward(input, kernel, grad, pad)
}

// Reshape records a ReshapeOp even though the result aliases the input
// buffer: the view is a distinct RawTensor and gradients are keyed by
// pointer.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return b.record(ops.NewReshapeOp(t, b.inner.Reshape(t, newShape)))
}

// Transpose resolves the default (reversed) axes before recording so the
// backward rule can invert the permutation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	if len(axes) == 0 {
		n := len(t.Shape())
		for i := range n {
			axes = append(axes, n-1-i)
		}
	}
	return b.record(ops.NewTransposeOp(t, b.inner.Transpose(t, axes...), axes))
}

func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return b.record(ops.NewReLUOp(x, b.inner.ReLU(x)))
}

// PinballLoss evaluates the mean pinball loss at level alpha as one fused
// node.
func (b *AutodiffBackend[B]) PinballLoss(pred, target *tensor.RawTensor, alpha float32) *tensor.RawTensor {
	return b.record(ops.NewPinballOp(pred, target, ops.PinballForward(pred, target, alpha), alpha))
}
