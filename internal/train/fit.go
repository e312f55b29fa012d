// Package train implements the fused training loop.
//
// A run is staged once (Compile: shape inference, fixed batch buffers, one
// step function) and then driven by Scan over keys split from the root
// seed ahead of time. Every step performs the same operations on the same
// shapes, and a given seed reproduces the run bit for bit.
package train

import (
	"context"
	"fmt"
	"time"

	"github.com/gridcast/gridcast/internal/nn"
	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
)

// Fit trains params on (x, y) and returns the final parameters and the
// per-step loss trace.
//
// x is [N, L, C] or [N, L]; y is [N] or [N, 1]. Neither is modified.
// The number of steps is (N / BatchSize) * Epochs; each step draws
// BatchSize distinct examples independently of earlier steps, so an
// "epoch" is a sampling budget rather than an exact pass over the data.
//
// Errors:
//   - ErrConfiguration: invalid hyperparameters, reported before any work
//   - tensor.ErrShapeMismatch: the model cannot accept the batch shape
//   - ErrNumerical: a loss or gradient became NaN or Inf
//
// On error no partial result is returned. If the step count is zero the
// input params are returned unchanged with an empty trace.
func Fit(ctx context.Context, model Objective, params nn.Params, x, y *tensor.RawTensor, cfg Config) (nn.Params, LossTrace, error) {
	n, ny := leading(x), leading(y)
	if err := cfg.validate(n, ny); err != nil {
		return nn.Params{}, nil, err
	}
	cfg = cfg.withDefaults()

	iterations := cfg.Iterations(n)
	if iterations == 0 {
		return params, LossTrace{}, nil
	}

	prog, err := Compile(model, cfg.Optimizer, x, y, cfg.BatchSize, cfg.Deterministic)
	if err != nil {
		return nn.Params{}, nil, err
	}
	keys := cfg.Seed.Split(iterations)

	logger := cfg.Logger.With("run", cfg.RunID.String())
	logger.Info("training started",
		"examples", n,
		"batch_size", cfg.BatchSize,
		"epochs", cfg.Epochs,
		"iterations", iterations,
		"optimizer", cfg.Optimizer.Name(),
		"lr", cfg.Optimizer.LR(),
		"deterministic", cfg.Deterministic)

	start := time.Now()
	cfg.Progress.Start(iterations)
	final, losses, err := Scan(prog.Init(params), keys, func(c Carry, key rng.Key) (Carry, float32, error) {
		if err := ctx.Err(); err != nil {
			return Carry{}, 0, fmt.Errorf("step %d: %w", c.State.Count+1, err)
		}
		next, loss, err := prog.Step(c, key)
		if err != nil {
			return Carry{}, 0, err
		}
		cfg.Progress.Add(1)
		return next, loss, nil
	})
	cfg.Progress.Finish()
	if err != nil {
		logger.Error("training failed", "error", err)
		return nn.Params{}, nil, err
	}

	trace := LossTrace(losses)
	summary := trace.Summary()
	logger.Info("training finished",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"first_loss", summary.First,
		"final_loss", summary.Last,
		"head_mean", summary.HeadMean,
		"tail_mean", summary.TailMean)

	return final.Params, trace, nil
}

// leading returns the size of the first axis, or 0 for scalars.
func leading(t *tensor.RawTensor) int {
	if t == nil || len(t.Shape()) == 0 {
		return 0
	}
	return t.Shape()[0]
}
