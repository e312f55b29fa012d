package ops

import "github.com/gridcast/gridcast/internal/tensor"

// Conv1DOp records a stride-1 channels-last 1D convolution.
//
// Forward:
//
//	output[n, t, o] = Σ_j Σ_c input[n, t+j-pad.Left, c] * kernel[j, c, o]
//
// Backward:
//
//	∂L/∂input  = backend.Conv1DInputBackward(input, kernel, grad, pad)
//	∂L/∂kernel = backend.Conv1DKernelBackward(input, kernel, grad, pad)
type Conv1DOp struct {
	input  *tensor.RawTensor // [N, L, C_in]
	kernel *tensor.RawTensor // [K, C_in, C_out]
	output *tensor.RawTensor // [N, L_out, C_out]
	pad    tensor.Padding1D
}

// NewConv1DOp creates a new Conv1DOp.
func NewConv1DOp(input, kernel, output *tensor.RawTensor, pad tensor.Padding1D) *Conv1DOp {
	return &Conv1DOp{
		input:  input,
		kernel: kernel,
		output: output,
		pad:    pad,
	}
}

// Backward computes gradients for the input and kernel.
func (op *Conv1DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.Conv1DInputBackward(op.input, op.kernel, outputGrad, op.pad),
		backend.Conv1DKernelBackward(op.input, op.kernel, outputGrad, op.pad),
	}
}

// Inputs returns [input, kernel].
func (op *Conv1DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the convolution result.
func (op *Conv1DOp) Output() *tensor.RawTensor {
	return op.output
}
