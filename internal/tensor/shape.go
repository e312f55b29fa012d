package tensor

import (
	"fmt"
	"slices"
)

// Shape lists tensor dimensions, outermost first. Activations are
// channels-last: [N, L, C].
type Shape []int

// NumElements returns the product of the dimensions; a scalar has one.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate reports a *ShapeError if any dimension is not positive.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return &ShapeError{Op: "shape", Details: fmt.Sprintf("dimension %d of %v is %d", i, s, s[i])}
	}
	return nil
}

// Equal reports whether s and other have the same dimensions.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s, other)
}

// Clone returns an independent copy.
func (s Shape) Clone() Shape {
	return append(Shape(make([]int, 0, len(s))), s...)
}

// ComputeStrides returns row-major element strides.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// BroadcastShapes applies NumPy broadcasting to a and b.
//
// Dimensions are matched from the right; a missing dimension counts as 1
// and a 1 stretches to the other side's size. The bool reports whether
// either operand is stretched.
//
//	[N, L, C] + [C]    -> [N, L, C], true
//	[N, 1]    + [N, 1] -> [N, 1],    false
//	[3, 4]    + [3, 5] -> error wrapping ErrShapeMismatch
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	rank := max(len(a), len(b))
	out := make(Shape, rank)
	stretched := len(a) != len(b)

	dim := func(s Shape, i int) int {
		if j := i - (rank - len(s)); j >= 0 {
			return s[j]
		}
		return 1
	}

	for i := range rank {
		da, db := dim(a, i), dim(b, i)
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i], stretched = db, true
		case db == 1:
			out[i], stretched = da, true
		default:
			return nil, false, &ShapeError{
				Op:      "broadcast",
				Details: fmt.Sprintf("%v vs %v (axis %d: %d vs %d)", a, b, i, da, db),
			}
		}
	}
	return out, stretched, nil
}
