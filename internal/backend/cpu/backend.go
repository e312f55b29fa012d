// Package cpu implements the CPU backend: pure Go element-wise kernels,
// im2col convolutions and GEMM through gonum's BLAS.
package cpu

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"

	"github.com/gridcast/gridcast/internal/parallel"
	"github.com/gridcast/gridcast/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
//
// Kernels never write into their inputs. Work is split across cores with a
// fixed partitioning, so results do not depend on scheduling.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend sized to the host's physical cores.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with explicit parallelism settings.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name, including the detected CPU model.
func (cpu *CPUBackend) Name() string {
	if brand := cpuid.CPU.BrandName; brand != "" {
		return fmt.Sprintf("CPU(%s)", brand)
	}
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Parallel returns the parallelism settings used by this backend.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.par
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		tensor.Panicf(op, "%v", err)
	}

	result := tensor.MustRaw(outShape, cpu.device)
	out := result.AsFloat32()
	ad, bd := a.AsFloat32(), b.AsFloat32()

	if !needsBroadcast {
		for i := range out {
			out[i] = f(ad[i], bd[i])
		}
		return result
	}

	ai, bi := broadcastIndexer(a.Shape(), outShape), broadcastIndexer(b.Shape(), outShape)
	for i := range out {
		out[i] = f(ad[ai.at(i)], bd[bi.at(i)])
	}
	return result
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustRaw(x.Shape(), cpu.device)
	out := result.AsFloat32()
	for i, v := range x.AsFloat32() {
		if v > 0 {
			out[i] = v
		}
	}
	return result
}

// Reshape returns a tensor with the same data but different shape.
// The result shares the input buffer; neither is written afterwards.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if err := newShape.Validate(); err != nil {
		tensor.Panicf("reshape", "invalid shape: %v", err)
	}
	return t.WithShape(newShape)
}

// Transpose transposes the tensor by permuting its dimensions.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	// Default: reverse all dimensions
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	if len(axes) != ndim {
		tensor.Panicf("transpose", "axes length %d != ndim %d", len(axes), ndim)
	}

	seen := make([]bool, ndim)
	for _, ax := range axes {
		if ax < 0 || ax >= ndim {
			tensor.Panicf("transpose", "invalid axis %d for %dD tensor", ax, ndim)
		}
		if seen[ax] {
			tensor.Panicf("transpose", "duplicate axis %d", ax)
		}
		seen[ax] = true
	}

	ix, newShape := permuteIndexer(shape, axes)
	result := tensor.MustRaw(newShape, cpu.device)
	src, dst := t.AsFloat32(), result.AsFloat32()
	for i := range dst {
		dst[i] = src[ix.at(i)]
	}
	return result
}
