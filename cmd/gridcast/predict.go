package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/gridcast/gridcast/internal/checkpoint"
	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/window"
)

func predictCommand(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		ckpt      = fs.String("checkpoint", "", "checkpoint written by 'gridcast train' (required)")
		dataPath  = fs.String("data", "", "CSV load series (default: synthetic)")
		column    = fs.String("column", "", "CSV value column (default: last)")
		synthetic = fs.Int("synthetic", 24*7*8, "points of synthetic load when -data is empty")
		seed      = fs.Uint64("seed", 0, "seed for synthetic load")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ckpt == "" {
		return fmt.Errorf("-checkpoint is required")
	}

	cp, err := checkpoint.Load(*ckpt)
	if err != nil {
		return err
	}
	model, err := cp.Restore()
	if err != nil {
		return err
	}
	scaler, horizon, err := scalerFromMetadata(cp.Metadata)
	if err != nil {
		return fmt.Errorf("%s: %w", *ckpt, err)
	}

	var series window.Series
	if *dataPath != "" {
		if series, err = window.LoadCSVFile(*dataPath, *column); err != nil {
			return err
		}
	} else {
		series = window.Synthetic(*synthetic, rng.New(*seed).FoldString("data"))
	}

	x, err := window.Last(scaler.Transform(series), model.Config().WindowLength)
	if err != nil {
		return err
	}
	pred, err := model.Predict(cp.Params, x, 1)
	if err != nil {
		return err
	}
	value := scaler.Inverse(pred.AsFloat32())[0]

	fmt.Fprintf(stdout, "run=%s alpha=%.3f horizon=%d forecast=%.4f\n",
		cp.RunID, model.Alpha(), horizon, value)
	return nil
}

func scalerFromMetadata(meta map[string]string) (window.Scaler, int, error) {
	sc := window.Scaler{Std: 1}
	horizon := 1
	var err error
	if v, ok := meta[metaScalerMean]; ok {
		if sc.Mean, err = strconv.ParseFloat(v, 64); err != nil {
			return window.Scaler{}, 0, fmt.Errorf("metadata %s: %w", metaScalerMean, err)
		}
	}
	if v, ok := meta[metaScalerStd]; ok {
		if sc.Std, err = strconv.ParseFloat(v, 64); err != nil {
			return window.Scaler{}, 0, fmt.Errorf("metadata %s: %w", metaScalerStd, err)
		}
	}
	if v, ok := meta[metaHorizon]; ok {
		if horizon, err = strconv.Atoi(v); err != nil {
			return window.Scaler{}, 0, fmt.Errorf("metadata %s: %w", metaHorizon, err)
		}
	}
	return sc, horizon, nil
}
