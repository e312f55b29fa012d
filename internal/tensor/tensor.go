// Package tensor provides the core tensor types and the backend contract for gridcast.
package tensor

import "fmt"

// Tensor pairs a RawTensor with the backend that computes on it. Every
// method dispatches through B, which is how the autodiff backend sees the
// forward pass.
type Tensor[B Backend] struct {
	raw     *RawTensor
	backend B
}

func New[B Backend](raw *RawTensor, b B) *Tensor[B] {
	return &Tensor[B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[B Backend](data []float32, shape Shape, b B) (*Tensor[B], error) {
	raw, err := FromFloat32(data, shape)
	if err != nil {
		return nil, err
	}
	return New(raw, b), nil
}

// Zeros creates a tensor filled with zeros.
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	return New(MustRaw(shape, b.Device()), b)
}

// Shape returns the tensor's shape.
func (t *Tensor[B]) Shape() Shape {
	return t.raw.Shape()
}

// NumElements returns the total number of elements.
func (t *Tensor[B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
func (t *Tensor[B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[B]) Backend() B {
	return t.backend
}

// Data returns the backing slice, not a copy.
func (t *Tensor[B]) Data() []float32 {
	return t.raw.AsFloat32()
}

// Item returns the scalar value of a single-element tensor.
func (t *Tensor[B]) Item() float32 {
	return t.raw.Item()
}

// String returns a human-readable representation of the tensor.
func (t *Tensor[B]) String() string {
	return fmt.Sprintf("Tensor[%s]%v on %s", DTypeName, t.Shape(), t.raw.Device())
}

// Detach returns a handle to the same data that a recording backend will
// treat as a fresh leaf. The data is shared, not copied.
func (t *Tensor[B]) Detach() *Tensor[B] {
	return New(t.raw.WithShape(t.raw.Shape()), t.backend)
}
