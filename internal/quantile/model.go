// Package quantile implements the quantile-regression forecasting network
// and its pinball loss.
//
// The network maps a batch of windows [N, L, C] to one quantile estimate
// per window, [N, 1]:
//
//	Conv(30,10) ReLU  Conv(30,8) ReLU  Conv(40,6) ReLU
//	Conv(50,5) ReLU Dropout  Conv(50,5) ReLU Dropout
//	Flatten  Dense(1024) ReLU Dropout  Dense(1)
//
// Parameters live outside the model in an nn.Params value, so a Model is
// a stateless, reusable description that is safe for concurrent Apply and
// Loss calls.
package quantile

import (
	"fmt"

	"github.com/gridcast/gridcast/internal/autodiff"
	"github.com/gridcast/gridcast/internal/autodiff/ops"
	"github.com/gridcast/gridcast/internal/backend/cpu"
	"github.com/gridcast/gridcast/internal/nn"
	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
)

// TrainBackend is the backend used for gradient computation.
type TrainBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// Model is the quantile forecasting network.
type Model struct {
	cfg     Config
	backend *cpu.CPUBackend
	net     *nn.Sequential[*cpu.CPUBackend]
}

// Option configures a Model.
type Option func(*Model)

// WithBackend sets the CPU backend used for evaluation.
func WithBackend(b *cpu.CPUBackend) Option {
	return func(m *Model) {
		m.backend = b
	}
}

// New validates cfg and builds the model.
func New(cfg Config, opts ...Option) (*Model, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Model{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}
	if m.backend == nil {
		m.backend = cpu.New()
	}
	m.net = network[*cpu.CPUBackend](cfg)
	return m, nil
}

// network builds the layer stack for backend type B.
func network[B tensor.Backend](cfg Config) *nn.Sequential[B] {
	net := nn.NewSequential[B]()
	drop := 0
	addDropout := func() {
		if cfg.DropoutRate > 0 {
			net.Add(nn.NewDropout[B](fmt.Sprintf("Dropout_%d", drop), cfg.DropoutRate))
		}
		drop++
	}

	for i, layer := range cfg.ConvStack {
		net.Add(nn.NewConv1D[B](fmt.Sprintf("Conv_%d", i), layer.Filters, layer.KernelSize))
		net.Add(nn.NewReLU[B]())
		if layer.Dropout {
			addDropout()
		}
	}
	net.Add(nn.NewFlatten[B]())
	if cfg.HiddenUnits > 0 {
		net.Add(nn.NewLinear[B]("Dense_0", cfg.HiddenUnits))
		net.Add(nn.NewReLU[B]())
		addDropout()
		net.Add(nn.NewLinear[B]("Dense_1", 1))
	} else {
		net.Add(nn.NewLinear[B]("Dense_0", 1))
	}
	return net
}

// Config returns the effective configuration, defaults included.
func (m *Model) Config() Config {
	cfg := m.cfg
	cfg.ConvStack = append([]ConvLayer(nil), m.cfg.ConvStack...)
	return cfg
}

// Alpha returns the quantile level.
func (m *Model) Alpha() float32 {
	return m.cfg.Alpha
}

// Backend returns the evaluation backend.
func (m *Model) Backend() *cpu.CPUBackend {
	return m.backend
}

// InputShape returns the canonical input shape for a batch of n windows.
func (m *Model) InputShape(n int) tensor.Shape {
	return tensor.Shape{n, m.cfg.WindowLength, m.cfg.Channels}
}

// OutputShape runs static shape inference for an input of the given shape.
// [N, L] inputs are treated as [N, L, 1].
func (m *Model) OutputShape(inputShape tensor.Shape) (tensor.Shape, error) {
	_, out, err := m.specs(inputShape)
	return out, err
}

// specs returns the parameter layout and output shape for an input shape.
func (m *Model) specs(inputShape tensor.Shape) ([]nn.ParamSpec, tensor.Shape, error) {
	in, err := canonicalInput(inputShape)
	if err != nil {
		return nil, nil, err
	}
	if in[1] != m.cfg.WindowLength || in[2] != m.cfg.Channels {
		return nil, nil, &tensor.ShapeError{
			Op:      "quantile",
			Details: fmt.Sprintf("input %v, model expects [N, %d, %d]", inputShape, m.cfg.WindowLength, m.cfg.Channels),
		}
	}
	return m.net.Specs(in)
}

// Init draws initial parameters from key.
func (m *Model) Init(key rng.Key) (nn.Params, error) {
	return m.net.Init(key, m.InputShape(1))
}

// CheckParams reports whether params fit this model's layout. A mismatch
// wraps tensor.ErrShapeMismatch.
func (m *Model) CheckParams(params nn.Params) error {
	specs, _, err := m.specs(m.InputShape(1))
	if err != nil {
		return err
	}
	return checkParams(params, specs)
}

// Apply evaluates the network on X ([N, L, C] or [N, L]) and returns
// predictions [N, 1].
//
// With deterministic set, dropout is disabled and key is ignored.
// Otherwise key must be valid and fully determines the dropout masks.
func (m *Model) Apply(params nn.Params, x *tensor.RawTensor, deterministic bool, key rng.Key) (*tensor.RawTensor, error) {
	specs, _, err := m.specs(x.Shape())
	if err != nil {
		return nil, err
	}
	if err := checkParams(params, specs); err != nil {
		return nil, err
	}
	if !deterministic {
		if err := key.Check(); err != nil {
			return nil, err
		}
	}

	var out *tensor.RawTensor
	err = tensor.Guard(func() {
		input := tensor.New(asInput(x), m.backend)
		out = m.net.Forward(input, params, nn.Context{Deterministic: deterministic, Key: key}).Raw()
	})
	return out, err
}

// Loss evaluates the mean pinball loss of the network's predictions on X
// against y ([N] or [N, 1]).
func (m *Model) Loss(params nn.Params, x, y *tensor.RawTensor, deterministic bool, key rng.Key) (float32, error) {
	target, err := asTarget(y, x.Shape())
	if err != nil {
		return 0, err
	}
	pred, err := m.Apply(params, x, deterministic, key)
	if err != nil {
		return 0, err
	}

	var loss float32
	err = tensor.Guard(func() {
		loss = ops.PinballForward(pred, target, m.cfg.Alpha).Item()
	})
	return loss, err
}

// LossAndGrad evaluates the loss and its gradients with respect to params.
func (m *Model) LossAndGrad(params nn.Params, x, y *tensor.RawTensor, deterministic bool, key rng.Key) (float32, nn.Params, error) {
	grad, err := m.CompileGrad(x.Shape())
	if err != nil {
		return 0, nn.Params{}, err
	}
	return grad(params, x, y, deterministic, key)
}

// Predict runs deterministic inference over X in chunks of batchSize
// windows and returns predictions [N, 1]. batchSize <= 0 evaluates X in
// one pass.
func (m *Model) Predict(params nn.Params, x *tensor.RawTensor, batchSize int) (*tensor.RawTensor, error) {
	in, err := canonicalInput(x.Shape())
	if err != nil {
		return nil, err
	}
	n := in[0]
	if batchSize <= 0 || batchSize >= n {
		return m.Apply(params, x, true, rng.Key{})
	}

	out := tensor.MustRaw(tensor.Shape{n, 1}, m.backend.Device())
	src := x.AsFloat32()
	stride := in[1] * in[2]
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		chunk, err := tensor.FromFloat32(src[start*stride:end*stride], tensor.Shape{end - start, in[1], in[2]})
		if err != nil {
			return nil, err
		}
		pred, err := m.Apply(params, chunk, true, rng.Key{})
		if err != nil {
			return nil, fmt.Errorf("predict rows %d-%d: %w", start, end, err)
		}
		copy(out.AsFloat32()[start:end], pred.AsFloat32())
	}
	return out, nil
}

// CompileGrad builds a gradient function for inputs of exactly
// inputShape. Shape inference runs once here; the returned function only
// checks that its arguments match.
//
// The returned function owns a gradient tape and must not be called
// concurrently.
func (m *Model) CompileGrad(inputShape tensor.Shape) (nn.GradFunc, error) {
	specs, out, err := m.specs(inputShape)
	if err != nil {
		return nil, err
	}
	in, _ := canonicalInput(inputShape)

	backend := autodiff.New(m.backend)
	net := network[TrainBackend](m.cfg)
	alpha := m.cfg.Alpha

	return func(params nn.Params, x, y *tensor.RawTensor, deterministic bool, key rng.Key) (float32, nn.Params, error) {
		if err := checkParams(params, specs); err != nil {
			return 0, nn.Params{}, err
		}
		xs, err := canonicalInput(x.Shape())
		if err != nil {
			return 0, nn.Params{}, err
		}
		if !xs.Equal(in) {
			return 0, nn.Params{}, &tensor.ShapeError{Op: "quantile", Details: fmt.Sprintf("input %v, compiled for %v", x.Shape(), inputShape)}
		}
		target, err := asTarget(y, x.Shape())
		if err != nil {
			return 0, nn.Params{}, err
		}
		if !deterministic {
			if err := key.Check(); err != nil {
				return 0, nn.Params{}, err
			}
		}

		var (
			loss  float32
			grads nn.Params
		)
		err = tensor.Guard(func() {
			tape := backend.Tape()
			tape.Clear()
			tape.StartRecording()
			defer func() {
				tape.StopRecording()
				tape.Clear()
			}()

			input := tensor.New(asInput(x), backend)
			pred := net.Forward(input, params, nn.Context{Deterministic: deterministic, Key: key})
			if !pred.Shape().Equal(out) {
				tensor.Panicf("quantile", "prediction shape %v, inferred %v", pred.Shape(), out)
			}
			lossT := nn.PinballLoss(pred, tensor.New(target, backend), alpha)
			all := autodiff.Backward(lossT, backend)

			loss = lossT.Item()
			grads = params.Map(func(_ string, v *tensor.RawTensor) *tensor.RawTensor {
				if g, ok := all[v]; ok {
					return g
				}
				return tensor.MustRaw(v.Shape(), v.Device())
			})
		})
		if err != nil {
			return 0, nn.Params{}, err
		}
		return loss, grads, nil
	}, nil
}

// checkParams reports a params/network mismatch as a shape error.
func checkParams(params nn.Params, specs []nn.ParamSpec) error {
	if err := params.Matches(specs); err != nil {
		return fmt.Errorf("%w: %w", tensor.ErrShapeMismatch, err)
	}
	return nil
}

// canonicalInput maps [N, L] to [N, L, 1] and rejects other ranks.
func canonicalInput(shape tensor.Shape) (tensor.Shape, error) {
	switch len(shape) {
	case 2:
		return tensor.Shape{shape[0], shape[1], 1}, nil
	case 3:
		return shape.Clone(), nil
	default:
		return nil, &tensor.ShapeError{Op: "quantile", Details: fmt.Sprintf("input must be [N, L] or [N, L, C], got %v", shape)}
	}
}

// asInput returns x viewed as [N, L, C].
func asInput(x *tensor.RawTensor) *tensor.RawTensor {
	if s := x.Shape(); len(s) == 2 {
		return x.WithShape(tensor.Shape{s[0], s[1], 1})
	}
	return x
}

// asTarget returns y viewed as [N, 1], checking N against the input.
func asTarget(y *tensor.RawTensor, inputShape tensor.Shape) (*tensor.RawTensor, error) {
	s := y.Shape()
	n := -1
	switch {
	case len(s) == 1:
		n = s[0]
	case len(s) == 2 && s[1] == 1:
		n = s[0]
	}
	if n < 0 || len(inputShape) == 0 || n != inputShape[0] {
		return nil, &tensor.ShapeError{Op: "quantile", Details: fmt.Sprintf("targets %v do not match inputs %v", s, inputShape)}
	}
	return y.WithShape(tensor.Shape{n, 1}), nil
}
