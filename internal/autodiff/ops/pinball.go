package ops

import "github.com/gridcast/gridcast/internal/tensor"

// PinballForward computes the mean pinball (quantile) loss of predictions q
// against targets y at quantile level alpha:
//
//	loss = mean(max(alpha*(y-q), (1-alpha)*(q-y)))
//
// q and y must have identical shapes. The sum is accumulated in float64 in
// element order, so the result is reproducible. Returns a scalar tensor.
func PinballForward(q, y *tensor.RawTensor, alpha float32) *tensor.RawTensor {
	checkPinball(q, y)

	a := float64(alpha)
	yd := y.AsFloat32()
	var sum float64
	for i, qv := range q.AsFloat32() {
		d := float64(yd[i]) - float64(qv)
		sum += max(a*d, (a-1)*d)
	}
	return tensor.Scalar(float32(sum / float64(q.NumElements())))
}

func checkPinball(q, y *tensor.RawTensor) {
	if !q.Shape().Equal(y.Shape()) {
		tensor.Panicf("pinball", "predictions %v vs targets %v", q.Shape(), y.Shape())
	}
	if q.NumElements() == 0 {
		tensor.Panicf("pinball", "empty batch")
	}
}

// PinballOp records the fused pinball loss.
//
// With d = y - q, the gradient with respect to each prediction is
//
//	-alpha      if d > 0
//	1 - alpha   if d < 0
//	0.5 - alpha if d == 0
//
// divided by the number of elements and scaled by the upstream gradient.
// At d == 0 both branches of the max are equal; the midpoint of the two
// one-sided slopes is used. Targets are constants and receive no gradient.
type PinballOp struct {
	pred   *tensor.RawTensor
	target *tensor.RawTensor
	output *tensor.RawTensor
	alpha  float32
}

// NewPinballOp creates a new PinballOp.
func NewPinballOp(pred, target, output *tensor.RawTensor, alpha float32) *PinballOp {
	return &PinballOp{
		pred:   pred,
		target: target,
		output: output,
		alpha:  alpha,
	}
}

// Backward computes the gradient for the predictions.
func (op *PinballOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	scale := outputGrad.Item() / float32(op.pred.NumElements())

	grad := tensor.MustRaw(op.pred.Shape(), op.pred.Device())
	dst := grad.AsFloat32()
	yd := op.target.AsFloat32()
	for i, qv := range op.pred.AsFloat32() {
		switch d := yd[i] - qv; {
		case d > 0:
			dst[i] = -op.alpha * scale
		case d < 0:
			dst[i] = (1 - op.alpha) * scale
		default:
			dst[i] = (0.5 - op.alpha) * scale
		}
	}
	return []*tensor.RawTensor{grad, nil}
}

// Inputs returns [predictions, targets].
func (op *PinballOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.pred, op.target}
}

// Output returns the scalar loss.
func (op *PinballOp) Output() *tensor.RawTensor {
	return op.output
}
