package cpu

import (
	"gonum.org/v1/gonum/blas"

	"github.com/gridcast/gridcast/internal/parallel"
	"github.com/gridcast/gridcast/internal/tensor"
)

// conv1dDims holds the validated dimensions of a 1D convolution.
type conv1dDims struct {
	n, l, cIn, k, cOut, lOut int
	pad                      tensor.Padding1D
}

// patchWidth is the length of one im2col row: K * C_in.
func (d conv1dDims) patchWidth() int {
	return d.k * d.cIn
}

func checkConv1D(op string, input, kernel *tensor.RawTensor, pad tensor.Padding1D) conv1dDims {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 3 {
		tensor.Panicf(op, "input must be 3D [N,L,C], got %dD", len(inputShape))
	}
	if len(kernelShape) != 3 {
		tensor.Panicf(op, "kernel must be 3D [K,C_in,C_out], got %dD", len(kernelShape))
	}
	if pad.Left < 0 || pad.Right < 0 {
		tensor.Panicf(op, "negative padding %+v", pad)
	}

	d := conv1dDims{
		n:    inputShape[0],
		l:    inputShape[1],
		cIn:  inputShape[2],
		k:    kernelShape[0],
		cOut: kernelShape[2],
		pad:  pad,
	}
	if kernelShape[1] != d.cIn {
		tensor.Panicf(op, "input channels %d != kernel channels %d", d.cIn, kernelShape[1])
	}

	d.lOut = d.l + pad.Left + pad.Right - d.k + 1
	if d.lOut <= 0 {
		tensor.Panicf(op, "input length %d too short for kernel %d with padding %+v", d.l, d.k, pad)
	}
	return d
}

// Conv1D performs a stride-1 1D convolution using im2col + GEMM.
//
// Input shape:  [N, L, C_in] (channels last)
// Kernel shape: [K, C_in, C_out]
// Output shape: [N, L_out, C_out], L_out = L + pad.Left + pad.Right - K + 1
//
// The kernel is already laid out as a [K*C_in, C_out] matrix, so the output
// is cols[N*L_out, K*C_in] @ kernel, with no reshuffling afterwards.
func (cpu *CPUBackend) Conv1D(input, kernel *tensor.RawTensor, pad tensor.Padding1D) *tensor.RawTensor {
	d := checkConv1D("conv1d", input, kernel, pad)

	cols := cpu.im2col(input.AsFloat32(), d)
	output := tensor.MustRaw(tensor.Shape{d.n, d.lOut, d.cOut}, cpu.device)
	gemm(blas.NoTrans, blas.NoTrans, cols, kernel.AsFloat32(), output.AsFloat32(), d.n*d.lOut, d.patchWidth(), d.cOut)
	return output
}

// Conv1DInputBackward computes ∂L/∂input for Conv1D.
//
//	dCols = grad[N*L_out, C_out] @ kernel^T
//	dInput = col2im(dCols)
func (cpu *CPUBackend) Conv1DInputBackward(input, kernel, grad *tensor.RawTensor, pad tensor.Padding1D) *tensor.RawTensor {
	d := checkConv1D("conv1d_backward", input, kernel, pad)
	checkConv1DGrad(grad, d)

	dCols := make([]float32, d.n*d.lOut*d.patchWidth())
	gemm(blas.NoTrans, blas.Trans, grad.AsFloat32(), kernel.AsFloat32(), dCols, d.n*d.lOut, d.cOut, d.patchWidth())

	inputGrad := tensor.MustRaw(input.Shape(), cpu.device)
	cpu.col2im(dCols, inputGrad.AsFloat32(), d)
	return inputGrad
}

// Conv1DKernelBackward computes ∂L/∂kernel for Conv1D.
//
//	dKernel = cols^T @ grad[N*L_out, C_out]
func (cpu *CPUBackend) Conv1DKernelBackward(input, kernel, grad *tensor.RawTensor, pad tensor.Padding1D) *tensor.RawTensor {
	d := checkConv1D("conv1d_backward", input, kernel, pad)
	checkConv1DGrad(grad, d)

	cols := cpu.im2col(input.AsFloat32(), d)
	kernelGrad := tensor.MustRaw(kernel.Shape(), cpu.device)
	gemm(blas.Trans, blas.NoTrans, cols, grad.AsFloat32(), kernelGrad.AsFloat32(), d.patchWidth(), d.n*d.lOut, d.cOut)
	return kernelGrad
}

func checkConv1DGrad(grad *tensor.RawTensor, d conv1dDims) {
	want := tensor.Shape{d.n, d.lOut, d.cOut}
	if !grad.Shape().Equal(want) {
		tensor.Panicf("conv1d_backward", "gradient shape %v, expected %v", grad.Shape(), want)
	}
}

// im2col unfolds every output position's receptive field into one row.
// Row (n*L_out + t) holds x[n, t+j-pad.Left, c] at column j*C_in + c,
// zero where the index falls into padding.
func (cpu *CPUBackend) im2col(x []float32, d conv1dDims) []float32 {
	width := d.patchWidth()
	cols := make([]float32, d.n*d.lOut*width)

	parallel.For(d.n, func(n int) {
		sample := x[n*d.l*d.cIn : (n+1)*d.l*d.cIn]
		for t := 0; t < d.lOut; t++ {
			row := cols[(n*d.lOut+t)*width : (n*d.lOut+t+1)*width]
			for j := 0; j < d.k; j++ {
				pos := t + j - d.pad.Left
				if pos < 0 || pos >= d.l {
					continue
				}
				copy(row[j*d.cIn:(j+1)*d.cIn], sample[pos*d.cIn:(pos+1)*d.cIn])
			}
		}
	}, cpu.par)

	return cols
}

// col2im is the adjoint of im2col: it scatter-adds patch gradients back to
// input positions. Each sample is owned by one worker.
func (cpu *CPUBackend) col2im(dCols, dx []float32, d conv1dDims) {
	width := d.patchWidth()

	parallel.For(d.n, func(n int) {
		sample := dx[n*d.l*d.cIn : (n+1)*d.l*d.cIn]
		for t := 0; t < d.lOut; t++ {
			row := dCols[(n*d.lOut+t)*width : (n*d.lOut+t+1)*width]
			for j := 0; j < d.k; j++ {
				pos := t + j - d.pad.Left
				if pos < 0 || pos >= d.l {
					continue
				}
				dst := sample[pos*d.cIn : (pos+1)*d.cIn]
				for c, g := range row[j*d.cIn : (j+1)*d.cIn] {
					dst[c] += g
				}
			}
		}
	}, cpu.par)
}
