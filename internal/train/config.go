package train

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gridcast/gridcast/internal/optim"
	"github.com/gridcast/gridcast/internal/rng"
)

var (
	// ErrConfiguration is returned for invalid hyperparameters or data
	// detected before the loop starts.
	ErrConfiguration = errors.New("train: invalid configuration")

	// ErrNumerical is returned when a loss or gradient becomes NaN or Inf.
	ErrNumerical = errors.New("train: non-finite value")
)

// Config holds the training-loop settings.
type Config struct {
	// Deterministic disables dropout during training.
	Deterministic bool
	// BatchSize is the number of examples drawn (without replacement) per
	// step. Must be in [1, N].
	BatchSize int
	// LearningRate for the default optimizer. Must be positive.
	LearningRate float32
	// Epochs scales the iteration count: (N / BatchSize) * Epochs.
	Epochs int
	// Seed is the root key. Per-step keys are split from it.
	Seed rng.Key

	// Optimizer overrides the default Adam(LearningRate).
	Optimizer optim.Optimizer
	// Progress receives step notifications (default: none).
	Progress Progress
	// Logger receives run summaries (default: slog.Default()).
	Logger *slog.Logger
	// RunID tags log records (default: a fresh random UUID).
	RunID uuid.UUID
}

// withDefaults fills optional fields.
func (c Config) withDefaults() Config {
	if c.Optimizer == nil {
		c.Optimizer = optim.NewAdam(optim.AdamConfig{LR: c.LearningRate})
	}
	if c.Progress == nil {
		c.Progress = NopProgress()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.RunID == uuid.Nil {
		c.RunID = uuid.New()
	}
	return c
}

// validate checks the hyperparameters against a dataset of n examples
// with ny targets.
func (c Config) validate(n, ny int) error {
	switch {
	case n != ny:
		return fmt.Errorf("%w: %d inputs but %d targets", ErrConfiguration, n, ny)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size %d must be positive", ErrConfiguration, c.BatchSize)
	case c.BatchSize > n:
		return fmt.Errorf("%w: batch size %d exceeds %d examples", ErrConfiguration, c.BatchSize, n)
	case c.Epochs < 0:
		return fmt.Errorf("%w: epochs %d is negative", ErrConfiguration, c.Epochs)
	case !(c.LearningRate > 0):
		return fmt.Errorf("%w: learning rate %v must be positive", ErrConfiguration, c.LearningRate)
	case !c.Seed.Valid():
		return fmt.Errorf("%w: %w", ErrConfiguration, rng.ErrMissingKey)
	}
	return nil
}

// Iterations returns (n / BatchSize) * Epochs, the number of steps Fit
// runs on n examples. It assumes a validated config.
func (c Config) Iterations(n int) int {
	if c.BatchSize <= 0 {
		return 0
	}
	return (n / c.BatchSize) * c.Epochs
}
