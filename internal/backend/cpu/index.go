package cpu

import (
	"github.com/gridcast/gridcast/internal/tensor"
)

// indexer maps a flat position in a row-major output to a flat position in
// a source buffer whose axes are broadcast or permuted relative to it.
type indexer struct {
	out []int // output strides
	src []int // source stride for each output axis; 0 repeats the element
}

// broadcastIndexer reads a tensor of shape in as if it had shape out.
// Missing leading axes and size-1 axes get stride 0.
func broadcastIndexer(in, out tensor.Shape) indexer {
	inStrides := in.ComputeStrides()
	src := make([]int, len(out))
	shift := len(out) - len(in)
	for i := shift; i < len(out); i++ {
		if in[i-shift] != 1 {
			src[i] = inStrides[i-shift]
		}
	}
	return indexer{out: out.ComputeStrides(), src: src}
}

// permuteIndexer reads a tensor of shape in through the axis permutation
// axes. It also returns the permuted shape.
func permuteIndexer(in tensor.Shape, axes []int) (indexer, tensor.Shape) {
	inStrides := in.ComputeStrides()
	shape := make(tensor.Shape, len(axes))
	src := make([]int, len(axes))
	for i, ax := range axes {
		shape[i] = in[ax]
		src[i] = inStrides[ax]
	}
	return indexer{out: shape.ComputeStrides(), src: src}, shape
}

func (ix indexer) at(pos int) int {
	flat := 0
	for axis, stride := range ix.out {
		flat += (pos / stride) * ix.src[axis]
		pos %= stride
	}
	return flat
}
