package nn

import (
	"github.com/gridcast/gridcast/internal/autodiff/ops"
	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
)

// PinballBackend is an interface for backends that compute the pinball
// loss as one fused, differentiable operation.
type PinballBackend interface {
	PinballLoss(pred, target *tensor.RawTensor, alpha float32) *tensor.RawTensor
}

// PinballLoss computes the mean pinball (quantile) loss:
//
//	loss = mean(max(alpha*(y-q), (1-alpha)*(q-y)))
//
// For alpha = 0.5 this is half the mean absolute error. Predictions and
// targets must have the same shape; a mismatch panics with a
// *tensor.ShapeError.
//
// On an autodiff backend the loss is recorded so gradients flow back to
// the predictions. Other backends evaluate it directly.
func PinballLoss[B tensor.Backend](pred, target *tensor.Tensor[B], alpha float32) *tensor.Tensor[B] {
	backend := pred.Backend()
	if pb, ok := any(backend).(PinballBackend); ok {
		return tensor.New(pb.PinballLoss(pred.Raw(), target.Raw(), alpha), backend)
	}
	return tensor.New(ops.PinballForward(pred.Raw(), target.Raw(), alpha), backend)
}

// GradFunc evaluates a scalar loss and its gradients with respect to params
// for one batch. x and y must have the shapes the function was built for.
type GradFunc func(params Params, x, y *tensor.RawTensor, deterministic bool, key rng.Key) (float32, Params, error)
