package train

import (
	"fmt"
	"math"

	"github.com/gridcast/gridcast/internal/nn"
	"github.com/gridcast/gridcast/internal/optim"
	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
)

// Objective is a model that can build a gradient function for a fixed
// input shape. *quantile.Model implements it.
type Objective interface {
	CompileGrad(inputShape tensor.Shape) (nn.GradFunc, error)
}

// Program is one training step staged for a fixed dataset and batch shape.
//
// Compile does all shape work up front; Step then performs the same
// operations on the same shapes every time: sample, gather, loss and
// gradient, optimizer update.
type Program struct {
	grad          nn.GradFunc
	opt           optim.Optimizer
	deterministic bool

	x, y     *tensor.RawTensor // full dataset, never written
	n        int
	rowWidth int // elements per example in x

	batchX *tensor.RawTensor // [B, ...] reused every step
	batchY *tensor.RawTensor // [B, 1]
}

// Compile stages a step for batches of batchSize rows of x and y.
//
// x is [N, ...] and y is [N] or [N, 1]. Shape inference for the batch
// shape runs here, so shape errors surface before the loop.
func Compile(model Objective, opt optim.Optimizer, x, y *tensor.RawTensor, batchSize int, deterministic bool) (*Program, error) {
	xs, ys := x.Shape(), y.Shape()
	if len(xs) < 2 {
		return nil, &tensor.ShapeError{Op: "train", Details: fmt.Sprintf("inputs must be [N, L] or [N, L, C], got %v", xs)}
	}
	if len(ys) == 0 || len(ys) > 2 || (len(ys) == 2 && ys[1] != 1) || ys[0] != xs[0] {
		return nil, &tensor.ShapeError{Op: "train", Details: fmt.Sprintf("targets %v do not match inputs %v", ys, xs)}
	}

	batchShape := xs.Clone()
	batchShape[0] = batchSize
	grad, err := model.CompileGrad(batchShape)
	if err != nil {
		return nil, fmt.Errorf("compile step for batch %v: %w", batchShape, err)
	}

	return &Program{
		grad:          grad,
		opt:           opt,
		deterministic: deterministic,
		x:             x,
		y:             y,
		n:             xs[0],
		rowWidth:      tensor.Shape(xs[1:]).NumElements(),
		batchX:        tensor.MustRaw(batchShape, x.Device()),
		batchY:        tensor.MustRaw(tensor.Shape{batchSize, 1}, y.Device()),
	}, nil
}

// BatchSize returns the number of examples per step.
func (p *Program) BatchSize() int {
	return p.batchY.Shape()[0]
}

// Init returns the initial carry for params.
func (p *Program) Init(params nn.Params) Carry {
	return Carry{Params: params, State: p.opt.Init(params)}
}

// Step runs one training step and returns the next carry and the batch
// loss. The step key drives both batch sampling and dropout.
func (p *Program) Step(c Carry, key rng.Key) (Carry, float32, error) {
	step := c.State.Count + 1

	idx, err := key.Choice(p.n, p.BatchSize())
	if err != nil {
		return Carry{}, 0, fmt.Errorf("step %d: sample batch: %w", step, err)
	}
	p.gather(idx)

	loss, grads, err := p.grad(c.Params, p.batchX, p.batchY, p.deterministic, key)
	if err != nil {
		return Carry{}, 0, fmt.Errorf("step %d: %w", step, err)
	}
	if math.IsNaN(float64(loss)) || math.IsInf(float64(loss), 0) {
		return Carry{}, 0, fmt.Errorf("%w: loss is %v at step %d", ErrNumerical, loss, step)
	}
	if name, ok := grads.AllFinite(); !ok {
		return Carry{}, 0, fmt.Errorf("%w: gradient of %q at step %d", ErrNumerical, name, step)
	}

	updates, state, err := p.opt.Update(grads, c.State, c.Params)
	if err != nil {
		return Carry{}, 0, fmt.Errorf("step %d: %w", step, err)
	}
	params, err := optim.ApplyUpdates(c.Params, updates)
	if err != nil {
		return Carry{}, 0, fmt.Errorf("step %d: %w", step, err)
	}

	next := Carry{Params: params, State: state}
	if err := c.SameStructure(next); err != nil {
		return Carry{}, 0, fmt.Errorf("step %d: %w", step, err)
	}
	return next, loss, nil
}

// gather copies the selected rows into the batch buffers.
func (p *Program) gather(idx []int) {
	src, dst := p.x.AsFloat32(), p.batchX.AsFloat32()
	ySrc, yDst := p.y.AsFloat32(), p.batchY.AsFloat32()
	w := p.rowWidth
	for b, i := range idx {
		copy(dst[b*w:(b+1)*w], src[i*w:(i+1)*w])
		yDst[b] = ySrc[i]
	}
}
