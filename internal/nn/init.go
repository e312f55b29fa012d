package nn

import (
	"math"

	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
)

// truncatedNormalStd is the standard deviation of a unit normal truncated
// to [-2, 2]. Dividing by it restores unit variance after truncation.
const truncatedNormalStd = 0.87962566103423978

// LeCunNormal initializes weights from a normal distribution truncated at
// two standard deviations, with variance 1/fanIn after truncation.
//
// This is the default kernel initializer for Conv1D and Linear.
func LeCunNormal(fanIn int) Initializer {
	std := math.Sqrt(1/float64(fanIn)) / truncatedNormalStd
	return func(key rng.Key, shape tensor.Shape) *tensor.RawTensor {
		t := tensor.MustRaw(shape, tensor.CPU)
		r := key.Rand()
		data := t.AsFloat32()
		for i := range data {
			z := r.NormFloat64()
			for math.Abs(z) > 2 {
				z = r.NormFloat64()
			}
			data[i] = float32(z * std)
		}
		return t
	}
}

// Zeros initializes an array with zeros. It is the bias initializer.
func Zeros(_ rng.Key, shape tensor.Shape) *tensor.RawTensor {
	return tensor.MustRaw(shape, tensor.CPU)
}
