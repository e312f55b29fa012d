package autodiff

import (
	"slices"

	"github.com/gridcast/gridcast/internal/tensor"
)

// Taped is a backend that records onto a GradientTape.
type Taped interface {
	tensor.Backend
	Tape() *GradientTape
}

// Backward differentiates t, seeded with ones, against everything recorded
// on the backend's tape. For a scalar loss the result maps each recorded
// tensor x to dloss/dx:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := nn.PinballLoss(pred, target, alpha)
//	grads := autodiff.Backward(loss, backend)
//	dKernel := grads[params.Must("Conv_0/kernel")]
//
// It panics if nothing was recorded, which means recording was never
// started.
func Backward[B Taped](t *tensor.Tensor[B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.Tape()
	if tape.NumOps() == 0 {
		panic("autodiff: backward on an empty tape (recording not started)")
	}
	seed, err := tensor.FromFloat32(slices.Repeat([]float32{1}, t.NumElements()), t.Shape())
	if err != nil {
		panic(err)
	}
	return tape.Backward(t.Raw(), seed, backend)
}
