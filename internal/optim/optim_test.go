package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridcast/gridcast/internal/nn"
	"github.com/gridcast/gridcast/internal/optim"
	"github.com/gridcast/gridcast/internal/tensor"
)

func single(t *testing.T, name string, values ...float32) nn.Params {
	t.Helper()
	raw, err := tensor.FromFloat32(values, tensor.Shape{len(values)})
	require.NoError(t, err)
	p, err := nn.NewParams(nn.Param{Name: name, Value: raw})
	require.NoError(t, err)
	return p
}

func step(t *testing.T, opt optim.Optimizer, params, grads nn.Params, state optim.State) (nn.Params, optim.State) {
	t.Helper()
	updates, next, err := opt.Update(grads, state, params)
	require.NoError(t, err)
	out, err := optim.ApplyUpdates(params, updates)
	require.NoError(t, err)
	return out, next
}

func TestSGD_SimpleUpdate(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1})
	params := single(t, "x", 2)
	state := opt.Init(params)
	assert.Empty(t, state.Slots)

	next, state := step(t, opt, params, single(t, "x", 1), state)

	// x_new = x_old - lr * grad = 2.0 - 0.1 * 1.0 = 1.9
	assert.InDelta(t, 1.9, next.Must("x").AsFloat32()[0], 1e-6)
	assert.Equal(t, float32(2), params.Must("x").AsFloat32()[0], "input params are not modified")
	assert.Equal(t, 1, state.Count)
}

func TestSGD_WithMomentum(t *testing.T) {
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	params := single(t, "x", 1)
	state := opt.Init(params)
	require.Len(t, state.Slots, 1)

	grad := single(t, "x", 1)
	params, state = step(t, opt, params, grad, state)
	// v = 1, x = 1 - 0.1
	assert.InDelta(t, 0.9, params.Must("x").AsFloat32()[0], 1e-6)

	params, _ = step(t, opt, params, grad, state)
	// v = 0.9 + 1 = 1.9, x = 0.9 - 0.19
	assert.InDelta(t, 0.71, params.Must("x").AsFloat32()[0], 1e-6)
}

func TestAdam_Defaults(t *testing.T) {
	opt := optim.NewAdam(optim.AdamConfig{})
	assert.Equal(t, float32(0.001), opt.LR())
	assert.Equal(t, "adam", opt.Name())
}

func TestAdam_FirstStepIsSignTimesLR(t *testing.T) {
	// With bias correction the first Adam step is lr * g/(|g| + eps).
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.01})
	params := single(t, "w", 1, 1, 1)
	state := opt.Init(params)

	next, state := step(t, opt, params, single(t, "w", 3, -0.5, 0), state)
	got := next.Must("w").AsFloat32()
	assert.InDelta(t, 0.99, got[0], 1e-5)
	assert.InDelta(t, 1.01, got[1], 1e-5)
	assert.InDelta(t, 1.0, got[2], 1e-7)
	assert.Equal(t, 1, state.Count)
	require.Len(t, state.Slots, 2)
}

func TestAdam_MatchesReference(t *testing.T) {
	const (
		lr    = 0.05
		beta1 = 0.9
		beta2 = 0.999
		eps   = 1e-8
	)
	opt := optim.NewAdam(optim.AdamConfig{LR: lr})
	params := single(t, "w", 0.5)
	state := opt.Init(params)

	// Reference in float64.
	w, m, v := 0.5, 0.0, 0.0
	grads := []float64{0.3, -0.1, 0.7, 0.2, -0.4}
	for i, g := range grads {
		params, state = step(t, opt, params, single(t, "w", float32(g)), state)

		k := float64(i + 1)
		m = beta1*m + (1-beta1)*g
		v = beta2*v + (1-beta2)*g*g
		mHat := m / (1 - math.Pow(beta1, k))
		vHat := v / (1 - math.Pow(beta2, k))
		w -= lr * mHat / (math.Sqrt(vHat) + eps)
	}
	assert.InDelta(t, w, float64(params.Must("w").AsFloat32()[0]), 1e-5)
	assert.Equal(t, len(grads), state.Count)
}

func TestAdam_MinimizesQuadratic(t *testing.T) {
	// f(x) = (x - 3)², grad = 2(x - 3)
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.1})
	params := single(t, "x", 0)
	state := opt.Init(params)

	for range 500 {
		x := params.Must("x").AsFloat32()[0]
		params, state = step(t, opt, params, single(t, "x", 2*(x-3)), state)
	}
	assert.InDelta(t, 3.0, params.Must("x").AsFloat32()[0], 0.05)
}

func TestUpdate_StructureMismatch(t *testing.T) {
	params := single(t, "w", 1, 2)
	for _, opt := range []optim.Optimizer{
		optim.NewAdam(optim.AdamConfig{}),
		optim.NewSGD(optim.SGDConfig{Momentum: 0.5}),
	} {
		t.Run(opt.Name(), func(t *testing.T) {
			state := opt.Init(params)
			_, _, err := opt.Update(single(t, "other", 1, 2), state, params)
			assert.ErrorIs(t, err, nn.ErrStructureMismatch)

			_, _, err = opt.Update(single(t, "w", 1), state, params)
			assert.ErrorIs(t, err, nn.ErrStructureMismatch)
		})
	}
}

func TestState_SameStructure(t *testing.T) {
	params := single(t, "w", 1, 2)
	adam := optim.NewAdam(optim.AdamConfig{})
	sgd := optim.NewSGD(optim.SGDConfig{})

	assert.NoError(t, adam.Init(params).SameStructure(adam.Init(params)))
	assert.ErrorIs(t, adam.Init(params).SameStructure(sgd.Init(params)), nn.ErrStructureMismatch)
}
