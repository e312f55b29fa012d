package quantile

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by New for an unusable model configuration.
var ErrInvalidConfig = errors.New("quantile: invalid config")

// ConvLayer describes one convolution block: Conv1D (SAME padding) then
// ReLU, optionally followed by dropout.
type ConvLayer struct {
	Filters    int  `json:"filters" yaml:"filters"`
	KernelSize int  `json:"kernel_size" yaml:"kernel_size"`
	Dropout    bool `json:"dropout" yaml:"dropout"`
}

// DefaultConvStack is the forecasting network's convolution stack.
func DefaultConvStack() []ConvLayer {
	return []ConvLayer{
		{Filters: 30, KernelSize: 10},
		{Filters: 30, KernelSize: 8},
		{Filters: 40, KernelSize: 6},
		{Filters: 50, KernelSize: 5, Dropout: true},
		{Filters: 50, KernelSize: 5, Dropout: true},
	}
}

// Config holds the model configuration.
//
// Zero values select defaults, except Alpha and WindowLength which must be
// set.
type Config struct {
	Alpha        float32     `json:"alpha" yaml:"alpha"`                     // Quantile level in (0, 1)
	WindowLength int         `json:"window_length" yaml:"window_length"`     // L, at least the widest kernel
	Channels     int         `json:"channels" yaml:"channels"`               // C (default: 1)
	ConvStack    []ConvLayer `json:"conv_stack" yaml:"conv_stack,omitempty"` // default: DefaultConvStack()
	HiddenUnits  int         `json:"hidden_units" yaml:"hidden_units"`       // Dense_0 width (default: 1024)
	DropoutRate  float64     `json:"dropout_rate" yaml:"dropout_rate"`       // default: 0.2
	NoDropout    bool        `json:"no_dropout" yaml:"no_dropout"`           // disables every dropout layer
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.Channels == 0 {
		c.Channels = 1
	}
	if len(c.ConvStack) == 0 {
		c.ConvStack = DefaultConvStack()
	} else {
		c.ConvStack = append([]ConvLayer(nil), c.ConvStack...)
	}
	if c.HiddenUnits == 0 {
		c.HiddenUnits = 1024
	}
	if c.DropoutRate == 0 {
		c.DropoutRate = 0.2
	}
	if c.NoDropout {
		c.DropoutRate = 0
	}
	return c
}

// MaxKernel returns the widest kernel of the conv stack.
func (c Config) MaxKernel() int {
	k := 0
	for _, layer := range c.ConvStack {
		k = max(k, layer.KernelSize)
	}
	return k
}

// validate checks a config after defaults were applied.
func (c Config) validate() error {
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return fmt.Errorf("%w: alpha %v outside (0, 1)", ErrInvalidConfig, c.Alpha)
	}
	if c.Channels < 0 {
		return fmt.Errorf("%w: channels %d", ErrInvalidConfig, c.Channels)
	}
	for i, layer := range c.ConvStack {
		if layer.Filters <= 0 || layer.KernelSize <= 0 {
			return fmt.Errorf("%w: conv layer %d has %d filters of width %d", ErrInvalidConfig, i, layer.Filters, layer.KernelSize)
		}
	}
	if c.WindowLength < c.MaxKernel() {
		return fmt.Errorf("%w: window length %d shorter than widest kernel %d", ErrInvalidConfig, c.WindowLength, c.MaxKernel())
	}
	if c.HiddenUnits < 0 {
		return fmt.Errorf("%w: hidden units %d", ErrInvalidConfig, c.HiddenUnits)
	}
	if c.DropoutRate < 0 || c.DropoutRate >= 1 {
		return fmt.Errorf("%w: dropout rate %v outside [0, 1)", ErrInvalidConfig, c.DropoutRate)
	}
	return nil
}
