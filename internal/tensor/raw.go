package tensor

import (
	"fmt"
	"math"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	default:
		return "Unknown"
	}
}

// DTypeName is the element type of every RawTensor. It is recorded in
// checkpoint headers.
const DTypeName = "float32"

// RawTensor is the low-level tensor representation: a contiguous row-major
// float32 buffer plus its shape.
//
// Backends never write into their inputs; every operation allocates its
// result. This is what lets parameter sets be shared between training steps
// as immutable values.
type RawTensor struct {
	data   []float32
	shape  Shape
	stride []int
	device Device
}

// NewRaw creates a zero-filled RawTensor with the given shape.
func NewRaw(shape Shape, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	return &RawTensor{
		data:   make([]float32, shape.NumElements()),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: device,
	}, nil
}

// MustRaw is like NewRaw but panics on an invalid shape.
// Used by backend kernels whose output shapes are derived from valid inputs.
func MustRaw(shape Shape, device Device) *RawTensor {
	r, err := NewRaw(shape, device)
	if err != nil {
		panic(err)
	}
	return r
}

// FromFloat32 creates a RawTensor holding a copy of data.
func FromFloat32(data []float32, shape Shape) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, &ShapeError{
			Op:      "from_float32",
			Details: fmt.Sprintf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data)),
		}
	}
	r, err := NewRaw(shape, CPU)
	if err != nil {
		return nil, err
	}
	copy(r.data, data)
	return r, nil
}

// Scalar creates a 0-D tensor holding v.
func Scalar(v float32) *RawTensor {
	return &RawTensor{data: []float32{v}, shape: Shape{}, stride: []int{}, device: CPU}
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return len(r.data)
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return len(r.data) * 4
}

// AsFloat32 returns the underlying buffer.
//
// WARNING: the slice aliases the tensor. Only the code that just allocated a
// tensor may write through it.
func (r *RawTensor) AsFloat32() []float32 {
	return r.data
}

// Item returns the value of a single-element tensor.
func (r *RawTensor) Item() float32 {
	if len(r.data) != 1 {
		Panicf("item", "tensor with shape %v is not a scalar", r.shape)
	}
	return r.data[0]
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	data := make([]float32, len(r.data))
	copy(data, r.data)
	return &RawTensor{
		data:   data,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		device: r.device,
	}
}

// WithShape returns a tensor sharing r's buffer under a new shape.
// The caller must guarantee the element counts agree.
func (r *RawTensor) WithShape(shape Shape) *RawTensor {
	if shape.NumElements() != len(r.data) {
		Panicf("reshape", "incompatible shapes: %v -> %v (different number of elements)", r.shape, shape)
	}
	return &RawTensor{
		data:   r.data,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		device: r.device,
	}
}

// AllFinite reports whether no element is NaN or ±Inf.
func (r *RawTensor) AllFinite() bool {
	for _, v := range r.data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// String returns a short description of the tensor.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor[%s]%v on %s", DTypeName, r.shape, r.device)
}
