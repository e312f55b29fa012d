// Copyright 2025 The gridcast Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package forecast

import (
	"context"
	"io"
	"log/slog"

	"github.com/gridcast/gridcast/internal/checkpoint"
	"github.com/gridcast/gridcast/internal/nn"
	"github.com/gridcast/gridcast/internal/optim"
	"github.com/gridcast/gridcast/internal/quantile"
	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
	"github.com/gridcast/gridcast/internal/train"
	"github.com/gridcast/gridcast/internal/window"
)

// Errors.
var (
	ErrShapeMismatch      = tensor.ErrShapeMismatch
	ErrInvalidConfig      = quantile.ErrInvalidConfig
	ErrConfiguration      = train.ErrConfiguration
	ErrNumerical          = train.ErrNumerical
	ErrMissingKey         = rng.ErrMissingKey
	ErrChecksumMismatch   = checkpoint.ErrChecksumMismatch
	ErrInvalidMagic       = checkpoint.ErrInvalidMagic
	ErrUnsupportedVersion = checkpoint.ErrUnsupportedVersion
)

// Tensors

// Tensor is a dense float32 array.
type Tensor = tensor.RawTensor

// Shape is a tensor shape.
type Shape = tensor.Shape

// FromFloat32 copies data into a tensor of the given shape.
func FromFloat32(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromFloat32(data, shape)
}

// Randomness

// Key is a splittable random key.
type Key = rng.Key

// NewKey derives a root key from seed.
func NewKey(seed uint64) Key {
	return rng.New(seed)
}

// Model

// Config is the model configuration.
type Config = quantile.Config

// ConvLayer describes one convolution block.
type ConvLayer = quantile.ConvLayer

// Model is a quantile regression network.
type Model = quantile.Model

// Params is an ordered, immutable set of named parameters.
type Params = nn.Params

// DefaultConvStack returns the default convolution stack.
func DefaultConvStack() []ConvLayer {
	return quantile.DefaultConvStack()
}

// New validates cfg and builds a model.
func New(cfg Config) (*Model, error) {
	return quantile.New(cfg)
}

// Training

// TrainConfig holds the training-loop settings.
type TrainConfig = train.Config

// LossTrace holds the batch loss of every step.
type LossTrace = train.LossTrace

// Summary describes a loss trace.
type Summary = train.Summary

// Progress observes a training run.
type Progress = train.Progress

// Optimizer is a functional optimizer.
type Optimizer = optim.Optimizer

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewAdam creates an Adam optimizer.
func NewAdam(cfg AdamConfig) Optimizer {
	return optim.NewAdam(cfg)
}

// NewSGD creates an SGD optimizer.
func NewSGD(cfg SGDConfig) Optimizer {
	return optim.NewSGD(cfg)
}

// NewBarProgress draws a progress bar on w.
func NewBarProgress(w io.Writer, description string) Progress {
	return train.NewBarProgress(w, description)
}

// NewLogProgress logs through logger every `every` steps.
func NewLogProgress(logger *slog.Logger, every int) Progress {
	return train.NewLogProgress(logger, every)
}

// Fit trains params on windows x ([N, L, C] or [N, L]) and targets y
// ([N] or [N, 1]) and returns the trained parameters and the loss trace.
func Fit(ctx context.Context, model *Model, params Params, x, y *Tensor, cfg TrainConfig) (Params, LossTrace, error) {
	return train.Fit(ctx, model, params, x, y, cfg)
}

// Data

// Series is a load series in time order.
type Series = window.Series

// Scaler standardizes a series.
type Scaler = window.Scaler

// LoadCSV reads one column of a CSV stream with a header row.
func LoadCSV(r io.Reader, column string) (Series, error) {
	return window.LoadCSV(r, column)
}

// LoadCSVFile reads one column of a CSV file with a header row.
func LoadCSVFile(path, column string) (Series, error) {
	return window.LoadCSVFile(path, column)
}

// Windows builds inputs [N, l, 1] and targets [N] from s.
func Windows(s Series, l, horizon int) (x, y *Tensor, err error) {
	return window.Windows(s, l, horizon)
}

// FitScaler computes standardization statistics for s.
func FitScaler(s Series) Scaler {
	return window.FitScaler(s)
}

// Checkpoints

// Checkpoint is a saved model.
type Checkpoint = checkpoint.Checkpoint

// Save writes cp to path.
func Save(path string, cp Checkpoint) error {
	return checkpoint.Save(path, cp)
}

// Load reads a checkpoint from path.
func Load(path string) (Checkpoint, error) {
	return checkpoint.Load(path)
}
