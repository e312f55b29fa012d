package optim

import (
	"fmt"

	"github.com/gridcast/gridcast/internal/nn"
)

// SGD steps by -lr * g, or with momentum μ > 0 by -lr * v where
// v ← μv + g.
type SGD struct {
	lr, momentum float32
}

// SGDConfig holds SGD hyperparameters. A zero LR means 0.01.
type SGDConfig struct {
	LR       float32
	Momentum float32
}

func NewSGD(config SGDConfig) *SGD {
	return &SGD{lr: orDefault(config.LR, 0.01), momentum: config.Momentum}
}

// Name returns "sgd".
func (s *SGD) Name() string {
	return "sgd"
}

// LR returns the learning rate.
func (s *SGD) LR() float32 {
	return s.lr
}

// Init returns a velocity slot when momentum is enabled and no slots
// otherwise.
func (s *SGD) Init(params nn.Params) State {
	if s.momentum == 0 {
		return State{}
	}
	return State{Slots: []nn.Params{params.ZerosLike()}}
}

// Update performs one SGD step.
func (s *SGD) Update(grads nn.Params, state State, params nn.Params) (nn.Params, State, error) {
	if err := params.SameStructure(grads); err != nil {
		return nn.Params{}, State{}, fmt.Errorf("sgd: gradients: %w", err)
	}

	if s.momentum == 0 {
		updates, err := zip3(grads, grads, grads, func(g, _, _, out []float32) {
			for i := range out {
				out[i] = -s.lr * g[i]
			}
		})
		return updates, State{Count: state.Count + 1}, err
	}

	if len(state.Slots) != 1 {
		return nn.Params{}, State{}, fmt.Errorf("%w: sgd with momentum expects 1 slot, got %d", nn.ErrStructureMismatch, len(state.Slots))
	}
	velocity, err := zip3(state.Slots[0], grads, grads, func(vPrev, g, _, out []float32) {
		for i := range out {
			out[i] = s.momentum*vPrev[i] + g[i]
		}
	})
	if err != nil {
		return nn.Params{}, State{}, fmt.Errorf("sgd: velocity: %w", err)
	}
	updates, err := zip3(velocity, velocity, velocity, func(v, _, _, out []float32) {
		for i := range out {
			out[i] = -s.lr * v[i]
		}
	})
	if err != nil {
		return nn.Params{}, State{}, err
	}
	return updates, State{Count: state.Count + 1, Slots: []nn.Params{velocity}}, nil
}
