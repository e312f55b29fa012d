// Package ops holds the backward rules for every operation the autodiff
// backend records.
//
// Element-wise ops (Add, Sub, Mul) support broadcasting and sum gradients
// back to the input shapes. MatMul, Conv1D and the fused Pinball loss have
// dedicated rules; ReLU, Reshape and Transpose are single-input plumbing.
package ops

import "github.com/gridcast/gridcast/internal/tensor"

// Operation is one recorded node. Backward maps the gradient of Output to
// one gradient per entry of Inputs, in the same order; nil means the input
// receives nothing.
type Operation interface {
	Inputs() []*tensor.RawTensor
	Output() *tensor.RawTensor
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
}
