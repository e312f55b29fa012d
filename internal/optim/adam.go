package optim

import (
	"fmt"
	"math"

	"github.com/gridcast/gridcast/internal/nn"
)

// Adam keeps running means of the gradient (m) and of its square (v) and
// steps by
//
//	-lr * m̂ / (sqrt(v̂) + eps),  m̂ = m / (1 - beta1^t),  v̂ = v / (1 - beta2^t)
//
// with eps outside the square root (Kingma & Ba, 2014).
type Adam struct {
	lr, beta1, beta2, eps float32
}

// AdamConfig holds Adam hyperparameters. Zero fields take the usual
// defaults: LR 1e-3, Betas {0.9, 0.999}, Eps 1e-8.
type AdamConfig struct {
	LR    float32
	Betas [2]float32
	Eps   float32
}

func orDefault(v, def float32) float32 {
	if v == 0 {
		return def
	}
	return v
}

func NewAdam(config AdamConfig) *Adam {
	return &Adam{
		lr:    orDefault(config.LR, 1e-3),
		beta1: orDefault(config.Betas[0], 0.9),
		beta2: orDefault(config.Betas[1], 0.999),
		eps:   orDefault(config.Eps, 1e-8),
	}
}

// Name returns "adam".
func (a *Adam) Name() string {
	return "adam"
}

// LR returns the learning rate.
func (a *Adam) LR() float32 {
	return a.lr
}

// Init returns zero moments: Slots[0] is m, Slots[1] is v.
func (a *Adam) Init(params nn.Params) State {
	return State{Slots: []nn.Params{params.ZerosLike(), params.ZerosLike()}}
}

// Update performs one Adam step.
func (a *Adam) Update(grads nn.Params, state State, params nn.Params) (nn.Params, State, error) {
	if len(state.Slots) != 2 {
		return nn.Params{}, State{}, fmt.Errorf("%w: adam expects 2 slots, got %d", nn.ErrStructureMismatch, len(state.Slots))
	}
	if err := params.SameStructure(grads); err != nil {
		return nn.Params{}, State{}, fmt.Errorf("adam: gradients: %w", err)
	}

	count := state.Count + 1
	biasCorrection1 := float32(1 - math.Pow(float64(a.beta1), float64(count)))
	biasCorrection2 := float32(1 - math.Pow(float64(a.beta2), float64(count)))

	m, err := zip3(state.Slots[0], grads, grads, func(mPrev, g, _, out []float32) {
		for i := range out {
			out[i] = a.beta1*mPrev[i] + (1-a.beta1)*g[i]
		}
	})
	if err != nil {
		return nn.Params{}, State{}, fmt.Errorf("adam: first moment: %w", err)
	}
	v, err := zip3(state.Slots[1], grads, grads, func(vPrev, g, _, out []float32) {
		for i := range out {
			out[i] = a.beta2*vPrev[i] + (1-a.beta2)*g[i]*g[i]
		}
	})
	if err != nil {
		return nn.Params{}, State{}, fmt.Errorf("adam: second moment: %w", err)
	}

	updates, err := zip3(m, v, v, func(mt, vt, _, out []float32) {
		for i := range out {
			mHat := mt[i] / biasCorrection1
			vHat := vt[i] / biasCorrection2
			out[i] = -a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	})
	if err != nil {
		return nn.Params{}, State{}, err
	}

	return updates, State{Count: count, Slots: []nn.Params{m, v}}, nil
}
