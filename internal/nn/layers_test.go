package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridcast/gridcast/internal/backend/cpu"
	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
)

type cpuB = *cpu.CPUBackend

func TestConv1D_Specs(t *testing.T) {
	conv := NewConv1D[cpuB]("Conv_0", 30, 10)

	specs, out, err := conv.Specs(tensor.Shape{4, 24, 1})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 24, 30}, out)
	require.Len(t, specs, 2)
	assert.Equal(t, "Conv_0/kernel", specs[0].Name)
	assert.Equal(t, tensor.Shape{10, 1, 30}, specs[0].Shape)
	assert.Equal(t, "Conv_0/bias", specs[1].Name)
	assert.Equal(t, tensor.Shape{30}, specs[1].Shape)
}

func TestConv1D_SpecsErrors(t *testing.T) {
	conv := NewConv1D[cpuB]("Conv_0", 30, 10)

	tests := []struct {
		name string
		in   tensor.Shape
	}{
		{"too short", tensor.Shape{4, 9, 1}},
		{"rank 2", tensor.Shape{4, 24}},
		{"no channels", tensor.Shape{4, 24, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := conv.Specs(tt.in)
			assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
		})
	}

	_, _, err := conv.Specs(tensor.Shape{4, 10, 1})
	assert.NoError(t, err, "window equal to kernel is allowed")
}

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()
	dense := NewLinear[cpuB]("Dense_0", 2)

	specs, out, err := dense.Specs(tensor.Shape{1, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2}, out)
	assert.Equal(t, tensor.Shape{3, 2}, specs[0].Shape)

	params, err := NewParams(
		Param{"Dense_0/kernel", mustRaw(t, []float32{1, 0, 0, 1, 1, 1}, tensor.Shape{3, 2})},
		Param{"Dense_0/bias", mustRaw(t, []float32{0.5, -0.5}, tensor.Shape{2})},
	)
	require.NoError(t, err)

	x, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{1, 3}, backend)
	require.NoError(t, err)
	y := dense.Forward(x, params, Context{Deterministic: true})

	// [1,2,3] @ [[1,0],[0,1],[1,1]] = [4, 5]
	assert.Equal(t, []float32{4.5, 4.5}, y.Data())
}

func TestFlatten(t *testing.T) {
	backend := cpu.New()
	f := NewFlatten[cpuB]()

	_, out, err := f.Specs(tensor.Shape{2, 5, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 15}, out)

	x := tensor.Zeros(tensor.Shape{2, 5, 3}, backend)
	assert.Equal(t, tensor.Shape{2, 15}, f.Forward(x, Params{}, Context{}).Shape())
}

func TestDropout(t *testing.T) {
	backend := cpu.New()
	ones := make([]float32, 1000)
	for i := range ones {
		ones[i] = 1
	}
	x, err := tensor.FromSlice(ones, tensor.Shape{10, 100}, backend)
	require.NoError(t, err)

	d := NewDropout[cpuB]("Dropout_0", 0.2)

	t.Run("deterministic is identity", func(t *testing.T) {
		y := d.Forward(x, Params{}, Context{Deterministic: true})
		assert.Equal(t, x.Data(), y.Data())
	})

	t.Run("scales kept values", func(t *testing.T) {
		y := d.Forward(x, Params{}, Context{Key: rng.New(1)})
		dropped := 0
		for _, v := range y.Data() {
			if v == 0 {
				dropped++
				continue
			}
			assert.InDelta(t, 1.25, v, 1e-6)
		}
		assert.InDelta(t, 200, dropped, 60)
	})

	t.Run("same key same mask", func(t *testing.T) {
		a := d.Forward(x, Params{}, Context{Key: rng.New(5)})
		b := d.Forward(x, Params{}, Context{Key: rng.New(5)})
		assert.Equal(t, a.Data(), b.Data())
	})

	t.Run("layers draw different masks", func(t *testing.T) {
		other := NewDropout[cpuB]("Dropout_1", 0.2)
		a := d.Forward(x, Params{}, Context{Key: rng.New(5)})
		b := other.Forward(x, Params{}, Context{Key: rng.New(5)})
		assert.NotEqual(t, a.Data(), b.Data())
	})

	t.Run("missing key panics", func(t *testing.T) {
		assert.Panics(t, func() { d.Forward(x, Params{}, Context{}) })
	})
}

func TestSequential_InitDeterministic(t *testing.T) {
	net := NewSequential[cpuB](
		NewConv1D[cpuB]("Conv_0", 4, 3),
		NewReLU[cpuB](),
		NewFlatten[cpuB](),
		NewLinear[cpuB]("Dense_0", 1),
	)

	specs, out, err := net.Specs(tensor.Shape{2, 6, 1})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1}, out)
	assert.Len(t, specs, 4)

	a, err := net.Init(rng.New(11), tensor.Shape{2, 6, 1})
	require.NoError(t, err)
	b, err := net.Init(rng.New(11), tensor.Shape{2, 6, 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"Conv_0/kernel", "Conv_0/bias", "Dense_0/kernel", "Dense_0/bias"}, a.Names())
	for _, name := range a.Names() {
		assert.Equal(t, a.Must(name).AsFloat32(), b.Must(name).AsFloat32(), name)
	}
	assert.Equal(t, make([]float32, 4), a.Must("Conv_0/bias").AsFloat32())
	assert.Equal(t, tensor.Shape{24, 1}, a.Must("Dense_0/kernel").Shape())
	assert.NoError(t, a.Matches(specs))

	_, err = net.Init(rng.Key{}, tensor.Shape{2, 6, 1})
	assert.ErrorIs(t, err, rng.ErrMissingKey)

	x := tensor.Zeros(tensor.Shape{2, 6, 1}, cpu.New())
	y := net.Forward(x, a, Context{Deterministic: true})
	assert.Equal(t, tensor.Shape{2, 1}, y.Shape())
}

func TestLeCunNormal(t *testing.T) {
	const fanIn = 50
	w := LeCunNormal(fanIn)(rng.New(3), tensor.Shape{100, 100})
	data := w.AsFloat32()

	limit := 2 * math.Sqrt(1.0/fanIn) / truncatedNormalStd
	var sum, sq float64
	for _, v := range data {
		assert.LessOrEqual(t, math.Abs(float64(v)), limit+1e-6)
		sum += float64(v)
		sq += float64(v) * float64(v)
	}
	n := float64(len(data))
	mean := sum / n
	variance := sq/n - mean*mean

	assert.InDelta(t, 0, mean, 0.01)
	assert.InDelta(t, 1.0/fanIn, variance, 0.002)
}

func TestPinballLoss_Properties(t *testing.T) {
	backend := cpu.New()
	q, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4, 1}, backend)
	y, _ := tensor.FromSlice([]float32{2, 2, 1, 6}, tensor.Shape{4, 1}, backend)

	t.Run("half MAE at median", func(t *testing.T) {
		loss := PinballLoss(q, y, 0.5).Item()
		// |q-y| = 1, 0, 2, 2 -> MAE 1.25
		assert.InDelta(t, 0.625, loss, 1e-6)
	})

	t.Run("zero at exact predictions", func(t *testing.T) {
		for _, alpha := range []float32{0.1, 0.5, 0.9} {
			assert.Zero(t, PinballLoss(y, y, alpha).Item())
		}
	})

	t.Run("over and under prediction", func(t *testing.T) {
		over, _ := tensor.FromSlice([]float32{5}, tensor.Shape{1, 1}, backend)
		under, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1, 1}, backend)
		target, _ := tensor.FromSlice([]float32{3}, tensor.Shape{1, 1}, backend)

		assert.InDelta(t, (1-0.9)*2, PinballLoss(over, target, 0.9).Item(), 1e-6)
		assert.InDelta(t, 0.9*2, PinballLoss(under, target, 0.9).Item(), 1e-6)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		bad := tensor.Zeros(tensor.Shape{3, 1}, backend)
		err := tensor.Guard(func() { PinballLoss(q, bad, 0.5) })
		assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	})
}
