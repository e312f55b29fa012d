package autodiff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridcast/gridcast/internal/autodiff"
	"github.com/gridcast/gridcast/internal/backend/cpu"
	"github.com/gridcast/gridcast/internal/tensor"
)

func TestAutodiffBackend_Metadata(t *testing.T) {
	inner := cpu.New()
	backend := autodiff.New(inner)

	assert.Equal(t, "Autodiff("+inner.Name()+")", backend.Name())
	assert.Equal(t, tensor.CPU, backend.Device())
	assert.Same(t, inner, backend.Inner())
}

func TestTape_Recording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()

	assert.False(t, tape.IsRecording())

	a, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	a.Add(a)
	assert.Zero(t, tape.NumOps(), "nothing is recorded before StartRecording")

	tape.StartRecording()
	a.Add(a).ReLU()
	assert.Equal(t, 2, tape.NumOps())

	tape.Clear()
	assert.Zero(t, tape.NumOps())
	assert.True(t, tape.IsRecording(), "Clear preserves the recording state")

	tape.StopRecording()
	a.Mul(a)
	assert.Zero(t, tape.NumOps())
}

func TestBackward_Square(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{2, -3}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	y := x.Mul(x)

	grads := autodiff.Backward(y, backend)
	assert.Equal(t, []float32{4, -6}, grads[x.Raw()].AsFloat32())
}

func TestBackward_NoOpsPanics(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := tensor.Zeros(tensor.Shape{1}, backend)
	assert.Panics(t, func() { autodiff.Backward(x, backend) })
}

func TestBackward_DoesNotRecordGradientOps(t *testing.T) {
	backend := autodiff.New(cpu.New())
	tape := backend.Tape()
	tape.StartRecording()

	x, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	y := x.Mul(x).Add(x)
	n := tape.NumOps()

	autodiff.Backward(y, backend)
	assert.Equal(t, n, tape.NumOps())
	assert.True(t, tape.IsRecording())
}

func TestBackward_BiasBroadcast(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// [N=2, L=3, C=2] + bias[C]
	x := tensor.Zeros(tensor.Shape{2, 3, 2}, backend)
	bias, err := tensor.FromSlice([]float32{0.5, -0.5}, tensor.Shape{2}, backend)
	require.NoError(t, err)
	y := x.Add(bias)

	grads := autodiff.Backward(y, backend)
	assert.Equal(t, tensor.Shape{2}, grads[bias.Raw()].Shape())
	assert.Equal(t, []float32{6, 6}, grads[bias.Raw()].AsFloat32())
	assert.Equal(t, tensor.Shape{2, 3, 2}, grads[x.Raw()].Shape())
}

func TestBackward_Sub(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	a, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	b, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{2}, backend)
	grads := autodiff.Backward(a.Sub(b), backend)

	assert.Equal(t, []float32{1, 1}, grads[a.Raw()].AsFloat32())
	assert.Equal(t, []float32{-1, -1}, grads[b.Raw()].AsFloat32())
}

func TestBackward_ReLU(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, _ := tensor.FromSlice([]float32{-1, 0, 2}, tensor.Shape{3}, backend)
	grads := autodiff.Backward(x.ReLU(), backend)

	assert.Equal(t, []float32{0, 0, 1}, grads[x.Raw()].AsFloat32())
}

func TestPinballLoss_Gradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	const alpha = 0.9
	q, _ := tensor.FromSlice([]float32{0, 2, 1, 5}, tensor.Shape{4, 1}, backend)
	y, _ := tensor.FromSlice([]float32{1, 1, 1, 5}, tensor.Shape{4, 1}, backend)

	loss := tensor.New(backend.PinballLoss(q.Raw(), y.Raw(), alpha), backend)
	// under: 0.9*1, over: 0.1*1, two ties: 0
	assert.InDelta(t, (0.9+0.1)/4, loss.Item(), 1e-6)

	grads := autodiff.Backward(loss, backend)
	g := grads[q.Raw()].AsFloat32()
	assert.InDelta(t, -alpha/4, g[0], 1e-6)
	assert.InDelta(t, (1-alpha)/4, g[1], 1e-6)
	assert.InDelta(t, (0.5-alpha)/4, g[2], 1e-6)
	assert.InDelta(t, (0.5-alpha)/4, g[3], 1e-6)

	_, hasTarget := grads[y.Raw()]
	assert.False(t, hasTarget, "targets are constants")
}

func TestPinballLoss_ShapeMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	q := tensor.Zeros(tensor.Shape{4, 1}, backend)
	y := tensor.Zeros(tensor.Shape{3, 1}, backend)

	err := tensor.Guard(func() { backend.PinballLoss(q.Raw(), y.Raw(), 0.5) })
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}
