package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/gridcast/gridcast/internal/tensor"
)

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N), computed with SGEMM.
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		tensor.Panicf("matmul", "only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		tensor.Panicf("matmul", "[%d,%d] @ [%d,%d]", m, k, kAlt, n)
	}

	result := tensor.MustRaw(tensor.Shape{m, n}, cpu.device)
	gemm(blas.NoTrans, blas.NoTrans, a.AsFloat32(), b.AsFloat32(), result.AsFloat32(), m, k, n)
	return result
}

// gemm computes C = op(A) @ op(B) into c, overwriting it.
//
// m, k, n are the logical dimensions after applying the transpose flags:
// op(A) is [m, k], op(B) is [k, n], C is [m, n]. All buffers are row-major
// and contiguous.
func gemm(tA, tB blas.Transpose, a, b, c []float32, m, k, n int) {
	aMat := blas32.General{Rows: m, Cols: k, Stride: k, Data: a}
	if tA == blas.Trans {
		aMat = blas32.General{Rows: k, Cols: m, Stride: m, Data: a}
	}
	bMat := blas32.General{Rows: k, Cols: n, Stride: n, Data: b}
	if tB == blas.Trans {
		bMat = blas32.General{Rows: n, Cols: k, Stride: k, Data: b}
	}
	cMat := blas32.General{Rows: m, Cols: n, Stride: n, Data: c}

	blas32.Gemm(tA, tB, 1, aMat, bMat, 0, cMat)
}
