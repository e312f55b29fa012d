package tensor

// Padding1D is the number of zeros added before and after the length axis
// of a 1-D convolution input.
type Padding1D struct {
	Left, Right int
}

// SamePadding returns the padding that keeps the output length equal to the
// input length for a stride-1 convolution with the given kernel width.
// For even kernels the extra zero goes on the right.
func SamePadding(kernel int) Padding1D {
	total := kernel - 1
	return Padding1D{Left: total / 2, Right: total - total/2}
}

// Backend defines the operations a compute backend must provide.
//
// Implementations:
//   - cpu.CPUBackend: pure Go kernels, GEMM through gonum
//   - autodiff.AutodiffBackend: decorator that records a gradient tape
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2-D tensors: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Conv1D convolves a channels-last input [N, L, C_in] with a kernel
	// [K, C_in, C_out] at stride 1, producing [N, L_out, C_out] where
	// L_out = L + pad.Left + pad.Right - K + 1.
	Conv1D(input, kernel *RawTensor, pad Padding1D) *RawTensor
	Conv1DInputBackward(input, kernel, grad *RawTensor, pad Padding1D) *RawTensor
	Conv1DKernelBackward(input, kernel, grad *RawTensor, pad Padding1D) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// ReLU applies max(0, x) element-wise.
	ReLU(x *RawTensor) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
