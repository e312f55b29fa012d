package autodiff

import (
	"github.com/gridcast/gridcast/internal/autodiff/ops"
	"github.com/gridcast/gridcast/internal/tensor"
)

// GradientTape is an append-only log of differentiable operations. The
// backward walk replays it in reverse, so gradients come out in a fixed
// order and repeated walks are bit-identical.
type GradientTape struct {
	log []ops.Operation
	on  bool
}

// NewGradientTape returns an empty tape that is not recording.
func NewGradientTape() *GradientTape {
	return &GradientTape{log: make([]ops.Operation, 0, 64)}
}

// StartRecording makes Record append operations.
func (t *GradientTape) StartRecording() {
	t.on = true
}

// StopRecording makes Record a no-op.
func (t *GradientTape) StopRecording() {
	t.on = false
}

// IsRecording reports whether Record appends.
func (t *GradientTape) IsRecording() bool {
	return t.on
}

// Record appends op if the tape is recording and drops it otherwise.
func (t *GradientTape) Record(op ops.Operation) {
	if !t.on {
		return
	}
	t.log = append(t.log, op)
}

// Clear forgets every recorded operation but keeps the recording flag.
func (t *GradientTape) Clear() {
	clear(t.log)
	t.log = t.log[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.log)
}

// Backward seeds output with outputGrad and propagates it through the log
// from the newest operation to the oldest. A tensor that feeds several
// operations receives the sum of their contributions. Operations whose
// output never received a gradient are skipped.
//
// Recording is suspended for the walk.
func (t *GradientTape) Backward(output, outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	defer func(on bool) { t.on = on }(t.on)
	t.on = false

	grads := map[*tensor.RawTensor]*tensor.RawTensor{output: outputGrad}
	accumulate := func(x, g *tensor.RawTensor) {
		if prev, seen := grads[x]; seen {
			g = backend.Add(prev, g)
		}
		grads[x] = g
	}

	for i := len(t.log) - 1; i >= 0; i-- {
		op := t.log[i]
		upstream := grads[op.Output()]
		if upstream == nil {
			continue
		}
		local := op.Backward(upstream, backend)
		for j, in := range op.Inputs() {
			if j < len(local) && local[j] != nil {
				accumulate(in, local[j])
			}
		}
	}
	return grads
}
