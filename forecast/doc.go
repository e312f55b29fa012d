// Copyright 2025 The gridcast Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package forecast trains quantile forecasters for electricity load.
//
// # Overview
//
// A forecaster is a 1D convolutional network over a window of recent load
// values. It is trained with the pinball (quantile) loss, so its output
// estimates the alpha-quantile of the next value rather than its mean.
//
//   - Model: configuration, parameter init, evaluation and loss
//   - Fit: the fused training loop (sample, loss and gradient, Adam step)
//   - Checkpoint: saving and restoring trained models
//   - Series: CSV loading and sliding windows
//
// # Basic Usage
//
//	import "github.com/gridcast/gridcast/forecast"
//
//	func main() {
//	    series, _ := forecast.LoadCSVFile("load.csv", "load")
//	    x, y, _ := forecast.Windows(series, 48, 1)
//
//	    model, _ := forecast.New(forecast.Config{Alpha: 0.9, WindowLength: 48})
//	    params, _ := model.Init(forecast.NewKey(0))
//
//	    params, trace, err := forecast.Fit(ctx, model, params, x, y, forecast.TrainConfig{
//	        BatchSize:    32,
//	        LearningRate: 0.01,
//	        Epochs:       10,
//	        Seed:         forecast.NewKey(1),
//	    })
//	    fmt.Println(trace.Summary().Last)
//	}
//
// # Determinism
//
// Every random choice (initialization, batch sampling, dropout) comes from
// an explicit Key. The same keys, data and configuration reproduce the
// same parameters and loss trace bit for bit.
//
// # Errors
//
// Configuration problems are reported before any work as ErrConfiguration
// or ErrInvalidConfig. Shape problems wrap ErrShapeMismatch. A loss or
// gradient that becomes NaN or Inf stops training with ErrNumerical.
package forecast
