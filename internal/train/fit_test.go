package train_test

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridcast/gridcast/internal/nn"
	"github.com/gridcast/gridcast/internal/optim"
	"github.com/gridcast/gridcast/internal/quantile"
	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
	"github.com/gridcast/gridcast/internal/train"
)

const window = 6

func tinyModel(t *testing.T) *quantile.Model {
	t.Helper()
	m, err := quantile.New(quantile.Config{
		Alpha:        0.5,
		WindowLength: window,
		ConvStack: []quantile.ConvLayer{
			{Filters: 4, KernelSize: 3},
			{Filters: 4, KernelSize: 2, Dropout: true},
		},
		HiddenUnits: 8,
	})
	require.NoError(t, err)
	return m
}

// sineData builds n windows of a sine wave with the next value as target.
func sineData(t *testing.T, n int) (*tensor.RawTensor, *tensor.RawTensor) {
	t.Helper()
	series := make([]float32, n+window)
	for i := range series {
		series[i] = float32(math.Sin(float64(i) * 0.3))
	}
	xs := make([]float32, 0, n*window)
	ys := make([]float32, n)
	for i := range n {
		xs = append(xs, series[i:i+window]...)
		ys[i] = series[i+window]
	}
	x, err := tensor.FromFloat32(xs, tensor.Shape{n, window, 1})
	require.NoError(t, err)
	y, err := tensor.FromFloat32(ys, tensor.Shape{n})
	require.NoError(t, err)
	return x, y
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func baseConfig() train.Config {
	return train.Config{
		Deterministic: true,
		BatchSize:     32,
		LearningRate:  0.01,
		Epochs:        1,
		Seed:          rng.New(0),
		Logger:        quietLogger(),
	}
}

func initParams(t *testing.T, m *quantile.Model) nn.Params {
	t.Helper()
	p, err := m.Init(rng.New(42))
	require.NoError(t, err)
	return p
}

func TestFit_ConfigurationErrors(t *testing.T) {
	m := tinyModel(t)
	params := initParams(t, m)
	x, y := sineData(t, 100)
	_, yShort := sineData(t, 99)

	tests := []struct {
		name   string
		mutate func(*train.Config)
		y      *tensor.RawTensor
	}{
		{"zero batch", func(c *train.Config) { c.BatchSize = 0 }, y},
		{"negative batch", func(c *train.Config) { c.BatchSize = -3 }, y},
		{"batch larger than data", func(c *train.Config) { c.BatchSize = 101 }, y},
		{"negative epochs", func(c *train.Config) { c.Epochs = -1 }, y},
		{"zero learning rate", func(c *train.Config) { c.LearningRate = 0 }, y},
		{"missing seed", func(c *train.Config) { c.Seed = rng.Key{} }, y},
		{"length mismatch", func(*train.Config) {}, yShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			got, trace, err := train.Fit(context.Background(), m, params, x, tt.y, cfg)
			require.ErrorIs(t, err, train.ErrConfiguration)
			assert.Nil(t, trace)
			assert.Zero(t, got.Len())
		})
	}
}

func TestFit_IterationCount(t *testing.T) {
	m := tinyModel(t)
	x, y := sineData(t, 100)

	cfg := baseConfig()
	cfg.Epochs = 10
	assert.Equal(t, 30, cfg.Iterations(100))

	_, trace, err := train.Fit(context.Background(), m, initParams(t, m), x, y, cfg)
	require.NoError(t, err)
	assert.Len(t, trace, 30)
}

func TestFit_BatchSizeEqualsN(t *testing.T) {
	m := tinyModel(t)
	x, y := sineData(t, 40)

	cfg := baseConfig()
	cfg.BatchSize = 40
	cfg.Epochs = 3
	_, trace, err := train.Fit(context.Background(), m, initParams(t, m), x, y, cfg)
	require.NoError(t, err)
	assert.Len(t, trace, 3)

	cfg.BatchSize = 41
	_, _, err = train.Fit(context.Background(), m, initParams(t, m), x, y, cfg)
	assert.ErrorIs(t, err, train.ErrConfiguration)
}

func TestFit_ZeroEpochsReturnsInputs(t *testing.T) {
	m := tinyModel(t)
	params := initParams(t, m)
	x, y := sineData(t, 50)

	cfg := baseConfig()
	cfg.Epochs = 0
	got, trace, err := train.Fit(context.Background(), m, params, x, y, cfg)
	require.NoError(t, err)
	assert.NotNil(t, trace)
	assert.Empty(t, trace)
	for name, v := range params.All() {
		g, ok := got.Get(name)
		require.True(t, ok)
		assert.Same(t, v, g)
	}
}

func TestFit_Deterministic(t *testing.T) {
	m := tinyModel(t)
	x, y := sineData(t, 64)

	cfg := baseConfig()
	cfg.Deterministic = false
	cfg.BatchSize = 16
	cfg.Epochs = 5
	cfg.Seed = rng.New(7)

	p1, t1, err := train.Fit(context.Background(), m, initParams(t, m), x, y, cfg)
	require.NoError(t, err)
	p2, t2, err := train.Fit(context.Background(), m, initParams(t, m), x, y, cfg)
	require.NoError(t, err)

	assert.Equal(t, t1, t2)
	for _, name := range p1.Names() {
		assert.Equal(t, p1.Must(name).AsFloat32(), p2.Must(name).AsFloat32(), name)
	}

	cfg.Seed = rng.New(8)
	_, t3, err := train.Fit(context.Background(), m, initParams(t, m), x, y, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t3)
}

func TestFit_LossDecreases(t *testing.T) {
	m := tinyModel(t)
	x, y := sineData(t, 128)

	cfg := baseConfig()
	cfg.Epochs = 75 // 300 steps
	_, trace, err := train.Fit(context.Background(), m, initParams(t, m), x, y, cfg)
	require.NoError(t, err)
	require.Len(t, trace, 300)

	s := trace.Summary()
	assert.True(t, s.Improved(), "head %.4f tail %.4f", s.HeadMean, s.TailMean)
}

func TestFit_DoesNotModifyInputs(t *testing.T) {
	m := tinyModel(t)
	params := initParams(t, m)
	before := params.Clone()
	x, y := sineData(t, 48)
	xCopy := append([]float32(nil), x.AsFloat32()...)
	yCopy := append([]float32(nil), y.AsFloat32()...)

	cfg := baseConfig()
	cfg.BatchSize = 8
	cfg.Epochs = 2
	_, _, err := train.Fit(context.Background(), m, params, x, y, cfg)
	require.NoError(t, err)

	assert.Equal(t, xCopy, x.AsFloat32())
	assert.Equal(t, yCopy, y.AsFloat32())
	for _, name := range params.Names() {
		assert.Equal(t, before.Must(name).AsFloat32(), params.Must(name).AsFloat32(), name)
	}
}

func TestFit_TwoDimensionalInputs(t *testing.T) {
	m := tinyModel(t)
	x, y := sineData(t, 32)
	x2 := x.WithShape(tensor.Shape{32, window})
	y2 := y.WithShape(tensor.Shape{32, 1})

	cfg := baseConfig()
	cfg.BatchSize = 8
	_, trace, err := train.Fit(context.Background(), m, initParams(t, m), x2, y2, cfg)
	require.NoError(t, err)
	assert.Len(t, trace, 4)
}

func TestFit_ShapeMismatch(t *testing.T) {
	m := tinyModel(t)
	params := initParams(t, m)

	x := tensor.MustRaw(tensor.Shape{20, window - 1, 1}, tensor.CPU)
	y := tensor.MustRaw(tensor.Shape{20}, tensor.CPU)
	cfg := baseConfig()
	cfg.BatchSize = 4
	_, _, err := train.Fit(context.Background(), m, params, x, y, cfg)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestFit_NumericalError(t *testing.T) {
	m := tinyModel(t)
	x, y := sineData(t, 16)
	for i := range y.AsFloat32() {
		y.AsFloat32()[i] = float32(math.NaN())
	}

	cfg := baseConfig()
	cfg.BatchSize = 4
	got, trace, err := train.Fit(context.Background(), m, initParams(t, m), x, y, cfg)
	require.ErrorIs(t, err, train.ErrNumerical)
	assert.Contains(t, err.Error(), "step 1")
	assert.Nil(t, trace)
	assert.Zero(t, got.Len())
}

func TestFit_Cancelled(t *testing.T) {
	m := tinyModel(t)
	x, y := sineData(t, 16)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := baseConfig()
	cfg.BatchSize = 4
	_, _, err := train.Fit(ctx, m, initParams(t, m), x, y, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

type countingProgress struct {
	total, added, finished int
}

func (p *countingProgress) Start(total int) { p.total = total }
func (p *countingProgress) Add(n int)       { p.added += n }
func (p *countingProgress) Finish()         { p.finished++ }

func TestFit_ProgressAndOptimizer(t *testing.T) {
	m := tinyModel(t)
	x, y := sineData(t, 40)

	progress := &countingProgress{}
	cfg := baseConfig()
	cfg.BatchSize = 10
	cfg.Epochs = 3
	cfg.Progress = progress
	cfg.Optimizer = optim.NewSGD(optim.SGDConfig{LR: 0.05, Momentum: 0.9})

	_, trace, err := train.Fit(context.Background(), m, initParams(t, m), x, y, cfg)
	require.NoError(t, err)
	assert.Len(t, trace, 12)
	assert.Equal(t, 12, progress.total)
	assert.Equal(t, 12, progress.added)
	assert.Equal(t, 1, progress.finished)
}
