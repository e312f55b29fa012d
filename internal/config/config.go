// Package config loads gridcast run files.
//
// A run file is YAML. Every field is optional; omitted fields keep the
// values from Default():
//
//	model:
//	  alpha: 0.9
//	  window_length: 48
//	train:
//	  seed: 7
//	  batch_size: 32
//	  epochs: 10
//	data:
//	  path: load.csv
//	  column: load
//	output:
//	  checkpoint: model.grdc
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gridcast/gridcast/internal/quantile"
)

// ErrInvalid is returned by Validate and Load for unusable settings.
var ErrInvalid = errors.New("config: invalid run configuration")

// Run is a complete training run description.
type Run struct {
	Model  quantile.Config `yaml:"model"`
	Train  Train           `yaml:"train"`
	Data   Data            `yaml:"data"`
	Output Output          `yaml:"output"`
	Log    Log             `yaml:"log"`
}

// Train holds the training-loop hyperparameters.
type Train struct {
	Seed          uint64  `yaml:"seed"`
	BatchSize     int     `yaml:"batch_size"`
	Epochs        int     `yaml:"epochs"`
	LearningRate  float32 `yaml:"learning_rate"`
	Optimizer     string  `yaml:"optimizer"` // "adam" or "sgd"
	Momentum      float32 `yaml:"momentum"`  // sgd only
	Deterministic bool    `yaml:"deterministic"`
}

// Data selects the load series and how it is windowed.
type Data struct {
	Path            string  `yaml:"path"`      // CSV file; empty means synthetic
	Column          string  `yaml:"column"`    // value column; empty means last
	Synthetic       int     `yaml:"synthetic"` // points to generate without a path
	Horizon         int     `yaml:"horizon"`   // steps ahead of the window
	Normalize       bool    `yaml:"normalize"`
	ValidationSplit float64 `yaml:"validation_split"`
}

// Output names the files a run produces.
type Output struct {
	Checkpoint string `yaml:"checkpoint"`
}

// Log configures the CLI's logger and progress display.
type Log struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Format   string `yaml:"format"`   // text or json
	Progress string `yaml:"progress"` // bar, log or none
}

// Default returns the reference run: hourly windows of two days, the
// 0.9 quantile, batch 32, learning rate 0.01 and 10 epochs.
func Default() Run {
	return Run{
		Model: quantile.Config{
			Alpha:        0.9,
			WindowLength: 48,
		},
		Train: Train{
			Seed:         0,
			BatchSize:    32,
			Epochs:       10,
			LearningRate: 0.01,
			Optimizer:    "adam",
		},
		Data: Data{
			Synthetic:       24 * 7 * 8,
			Horizon:         1,
			Normalize:       true,
			ValidationSplit: 0.1,
		},
		Log: Log{
			Level:    "info",
			Format:   "text",
			Progress: "bar",
		},
	}
}

// Load reads a run file on top of Default() and validates the result.
// Unknown keys are rejected.
func Load(path string) (Run, error) {
	//nolint:gosec // G304: the run file path is user input by design
	f, err := os.Open(path)
	if err != nil {
		return Run{}, fmt.Errorf("failed to open run file: %w", err)
	}
	defer f.Close()

	run := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&run); err != nil && !errors.Is(err, io.EOF) {
		return Run{}, fmt.Errorf("%s: %w: %w", path, ErrInvalid, err)
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("%s: %w", path, err)
	}
	return run, nil
}

// Validate checks the settings that the training packages do not check
// themselves.
func (r Run) Validate() error {
	var errs []error
	switch strings.ToLower(r.Train.Optimizer) {
	case "", "adam", "sgd":
	default:
		errs = append(errs, fmt.Errorf("unknown optimizer %q", r.Train.Optimizer))
	}
	if r.Data.Path == "" && r.Data.Synthetic <= 0 {
		errs = append(errs, fmt.Errorf("data: either path or synthetic must be set"))
	}
	if r.Data.Horizon < 1 {
		errs = append(errs, fmt.Errorf("data: horizon %d must be at least 1", r.Data.Horizon))
	}
	if r.Data.ValidationSplit < 0 || r.Data.ValidationSplit >= 1 {
		errs = append(errs, fmt.Errorf("data: validation_split %v must be in [0, 1)", r.Data.ValidationSplit))
	}
	switch strings.ToLower(r.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log: unknown format %q", r.Log.Format))
	}
	switch strings.ToLower(r.Log.Progress) {
	case "", "bar", "log", "none":
	default:
		errs = append(errs, fmt.Errorf("log: unknown progress %q", r.Log.Progress))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Marshal renders the run as YAML.
func (r Run) Marshal() ([]byte, error) {
	return yaml.Marshal(r)
}
