package train

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// LossTrace holds the batch loss of every step, in step order.
type LossTrace []float32

// Summary describes a loss trace.
type Summary struct {
	Steps    int
	First    float64
	Last     float64
	Mean     float64
	StdDev   float64
	Min      float64
	Max      float64
	HeadMean float64 // mean of the first 10% of steps (at least one)
	TailMean float64 // mean of the last 10% of steps (at least one)
}

// Improved reports whether the tail of the trace is below its head.
func (s Summary) Improved() bool {
	return s.Steps > 0 && s.TailMean < s.HeadMean
}

// Summary computes trace statistics. An empty trace gives a zero Summary.
func (t LossTrace) Summary() Summary {
	if len(t) == 0 {
		return Summary{}
	}
	xs := make([]float64, len(t))
	for i, v := range t {
		xs[i] = float64(v)
	}
	k := max(len(xs)/10, 1)

	s := Summary{
		Steps:    len(xs),
		First:    xs[0],
		Last:     xs[len(xs)-1],
		Mean:     stat.Mean(xs, nil),
		Min:      floats.Min(xs),
		Max:      floats.Max(xs),
		HeadMean: stat.Mean(xs[:k], nil),
		TailMean: stat.Mean(xs[len(xs)-k:], nil),
	}
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	return s
}
