package ops

import "github.com/gridcast/gridcast/internal/tensor"

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()
	if gradShape.Equal(targetShape) {
		return grad
	}

	// Shapes align from the right: leading extra dims are summed away.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = sumAlongDimension(result, 0)
		result = result.WithShape(result.Shape()[1:])
	}

	shape := result.Shape()
	for i := range targetShape {
		if targetShape[i] == 1 && shape[i] > 1 {
			result = sumAlongDimension(result, i)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// sumAlongDimension sums a tensor along dim, keeping it with size 1.
func sumAlongDimension(t *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := t.Shape()
	if dim < 0 || dim >= len(shape) {
		tensor.Panicf("sum", "invalid dimension %d for shape %v", dim, shape)
	}

	outShape := shape.Clone()
	outShape[dim] = 1
	result := tensor.MustRaw(outShape, t.Device())

	// View the tensor as [outer, size, inner] and sum the middle axis.
	outer := 1
	for _, s := range shape[:dim] {
		outer *= s
	}
	inner := 1
	for _, s := range shape[dim+1:] {
		inner *= s
	}
	size := shape[dim]

	src := t.AsFloat32()
	dst := result.AsFloat32()
	for o := 0; o < outer; o++ {
		out := dst[o*inner : (o+1)*inner]
		for s := 0; s < size; s++ {
			row := src[(o*size+s)*inner : (o*size+s+1)*inner]
			for i, v := range row {
				out[i] += v
			}
		}
	}
	return result
}

// negate returns -grad as a new tensor.
func negate(grad *tensor.RawTensor) *tensor.RawTensor {
	result := tensor.MustRaw(grad.Shape(), grad.Device())
	dst := result.AsFloat32()
	for i, v := range grad.AsFloat32() {
		dst[i] = -v
	}
	return result
}
