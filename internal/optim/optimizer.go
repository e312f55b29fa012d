// Package optim implements functional optimization algorithms.
//
// Optimizers never modify parameters or state in place. Each step takes
// the current gradients, state and parameters and returns parameter
// updates together with a new state:
//
//	opt := optim.NewAdam(optim.AdamConfig{LR: 0.001})
//	state := opt.Init(params)
//
//	for step := range steps {
//	    _, grads, _ := gradFn(params, x, y, false, keys[step])
//	    updates, next, err := opt.Update(grads, state, params)
//	    if err != nil { ... }
//	    params, _ = optim.ApplyUpdates(params, updates)
//	    state = next
//	}
//
// This package provides:
//   - Optimizer interface: Init and Update
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
package optim

import (
	"fmt"

	"github.com/gridcast/gridcast/internal/nn"
	"github.com/gridcast/gridcast/internal/tensor"
)

// State is an optimizer's state between steps.
//
// Count is the number of updates applied so far. Slots hold per-parameter
// buffers with the same structure as the parameters (Adam: first and
// second moments; SGD with momentum: velocity).
type State struct {
	Count int
	Slots []nn.Params
}

// SameStructure checks that other has the same slot layout as s.
func (s State) SameStructure(other State) error {
	if len(s.Slots) != len(other.Slots) {
		return fmt.Errorf("%w: optimizer state has %d slots vs %d", nn.ErrStructureMismatch, len(s.Slots), len(other.Slots))
	}
	for i := range s.Slots {
		if err := s.Slots[i].SameStructure(other.Slots[i]); err != nil {
			return fmt.Errorf("optimizer slot %d: %w", i, err)
		}
	}
	return nil
}

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Init creates the initial state for params.
	Init(params nn.Params) State

	// Update computes parameter updates from grads. The returned updates
	// are added to the parameters by ApplyUpdates. grads must have the same
	// structure as params.
	Update(grads nn.Params, state State, params nn.Params) (nn.Params, State, error)

	// LR returns the learning rate.
	LR() float32

	// Name identifies the algorithm in logs and checkpoints.
	Name() string
}

// ApplyUpdates returns params + updates as new arrays.
func ApplyUpdates(params, updates nn.Params) (nn.Params, error) {
	return params.Zip(updates, func(_ string, p, u *tensor.RawTensor) *tensor.RawTensor {
		out := tensor.MustRaw(p.Shape(), p.Device())
		dst := out.AsFloat32()
		ud := u.AsFloat32()
		for i, v := range p.AsFloat32() {
			dst[i] = v + ud[i]
		}
		return out
	})
}

// zip3 combines three same-structured sets entry by entry.
func zip3(a, b, c nn.Params, f func(x, y, z, out []float32)) (nn.Params, error) {
	if err := a.SameStructure(b); err != nil {
		return nn.Params{}, err
	}
	if err := a.SameStructure(c); err != nil {
		return nn.Params{}, err
	}
	i := 0
	return a.Map(func(_ string, x *tensor.RawTensor) *tensor.RawTensor {
		out := tensor.MustRaw(x.Shape(), x.Device())
		f(x.AsFloat32(), b.At(i).Value.AsFloat32(), c.At(i).Value.AsFloat32(), out.AsFloat32())
		i++
		return out
	}), nil
}
