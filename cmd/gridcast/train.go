package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/gridcast/gridcast/internal/checkpoint"
	"github.com/gridcast/gridcast/internal/config"
	"github.com/gridcast/gridcast/internal/nn"
	"github.com/gridcast/gridcast/internal/optim"
	"github.com/gridcast/gridcast/internal/quantile"
	"github.com/gridcast/gridcast/internal/rng"
	"github.com/gridcast/gridcast/internal/tensor"
	"github.com/gridcast/gridcast/internal/train"
	"github.com/gridcast/gridcast/internal/window"
)

// Checkpoint metadata keys written by train and read by predict.
const (
	metaScalerMean = "scaler_mean"
	metaScalerStd  = "scaler_std"
	metaHorizon    = "horizon"
)

// loadRun parses flags, loads the run file named by -config (if any) and
// applies the flags that were set on top of it.
func loadRun(args []string, stderr io.Writer) (config.Run, error) {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath    = fs.String("config", "", "YAML run file")
		dataPath      = fs.String("data", "", "CSV load series (default: synthetic)")
		column        = fs.String("column", "", "CSV value column (default: last)")
		synthetic     = fs.Int("synthetic", 0, "points of synthetic load to generate")
		alpha         = fs.Float64("alpha", 0, "quantile level in (0, 1)")
		windowLength  = fs.Int("window", 0, "input window length")
		seed          = fs.Uint64("seed", 0, "root random seed")
		batchSize     = fs.Int("batch", 0, "batch size")
		epochs        = fs.Int("epochs", 0, "epochs")
		lr            = fs.Float64("lr", 0, "learning rate")
		optimizer     = fs.String("optimizer", "", "adam or sgd")
		deterministic = fs.Bool("deterministic", false, "disable dropout during training")
		out           = fs.String("out", "", "checkpoint output path")
		logFormat     = fs.String("log-format", "", "text or json")
		logLevel      = fs.String("log-level", "", "debug, info, warn or error")
		progress      = fs.String("progress", "", "bar, log or none")
	)
	if err := fs.Parse(args); err != nil {
		return config.Run{}, err
	}

	run := config.Default()
	if *configPath != "" {
		var err error
		if run, err = config.Load(*configPath); err != nil {
			return config.Run{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			run.Data.Path = *dataPath
		case "column":
			run.Data.Column = *column
		case "synthetic":
			run.Data.Path, run.Data.Synthetic = "", *synthetic
		case "alpha":
			run.Model.Alpha = float32(*alpha)
		case "window":
			run.Model.WindowLength = *windowLength
		case "seed":
			run.Train.Seed = *seed
		case "batch":
			run.Train.BatchSize = *batchSize
		case "epochs":
			run.Train.Epochs = *epochs
		case "lr":
			run.Train.LearningRate = float32(*lr)
		case "optimizer":
			run.Train.Optimizer = *optimizer
		case "deterministic":
			run.Train.Deterministic = *deterministic
		case "out":
			run.Output.Checkpoint = *out
		case "log-format":
			run.Log.Format = *logFormat
		case "log-level":
			run.Log.Level = *logLevel
		case "progress":
			run.Log.Progress = *progress
		}
	})
	return run, run.Validate()
}

func trainCommand(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	run, err := loadRun(args, stderr)
	if err != nil {
		return err
	}
	logger, err := newLogger(stderr, run.Log)
	if err != nil {
		return err
	}
	root := rng.New(run.Train.Seed)

	series, err := loadSeries(run.Data, root)
	if err != nil {
		return err
	}
	model, err := quantile.New(run.Model)
	if err != nil {
		return err
	}
	l, h := model.Config().WindowLength, run.Data.Horizon

	scaler := window.Scaler{Std: 1}
	trainPart, _ := series.Split(run.Data.ValidationSplit)
	if run.Data.Normalize {
		scaler = window.FitScaler(trainPart)
	}
	scaled := scaler.Transform(series)
	cut := len(trainPart)

	x, y, err := window.Windows(scaled[:cut], l, h)
	if err != nil {
		return fmt.Errorf("training data: %w", err)
	}
	logger.Info("data loaded",
		"points", len(series),
		"train_points", cut,
		"windows", x.Shape()[0],
		"window", l,
		"horizon", h)

	params, err := model.Init(root.FoldString("init"))
	if err != nil {
		return err
	}

	cfg := train.Config{
		Deterministic: run.Train.Deterministic,
		BatchSize:     run.Train.BatchSize,
		LearningRate:  run.Train.LearningRate,
		Epochs:        run.Train.Epochs,
		Seed:          root.FoldString("train"),
		Optimizer:     newOptimizer(run.Train),
		Logger:        logger,
		RunID:         uuid.New(),
	}
	cfg.Progress = newProgress(run.Log.Progress, stderr, logger, cfg.Iterations(x.Shape()[0]))

	params, trace, err := train.Fit(ctx, model, params, x, y, cfg)
	if err != nil {
		return err
	}
	printSummary(stdout, trace.Summary())

	meta := map[string]string{
		metaScalerMean: strconv.FormatFloat(scaler.Mean, 'g', -1, 64),
		metaScalerStd:  strconv.FormatFloat(scaler.Std, 'g', -1, 64),
		metaHorizon:    strconv.Itoa(h),
	}
	if cut < len(series) {
		if err := validate(stdout, model, params, scaled[max(cut-l, 0):], l, h, meta); err != nil {
			return err
		}
	}

	if run.Output.Checkpoint != "" {
		err := checkpoint.Save(run.Output.Checkpoint, checkpoint.Checkpoint{
			Model:    model.Config(),
			Params:   params,
			RunID:    cfg.RunID,
			Metadata: meta,
		})
		if err != nil {
			return err
		}
		logger.Info("checkpoint written", "path", run.Output.Checkpoint)
	}
	return nil
}

// validate reports the held-out pinball loss and the fraction of targets
// at or below the predicted quantile.
func validate(w io.Writer, model *quantile.Model, params nn.Params, s window.Series, l, h int, meta map[string]string) error {
	x, y, err := window.Windows(s, l, h)
	if err != nil {
		fmt.Fprintf(w, "validation: skipped (%v)\n", err)
		return nil
	}
	pred, err := model.Predict(params, x, 256)
	if err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	loss, err := model.Loss(params, x, y, true, rng.Key{})
	if err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	cov := coverage(pred, y)

	fmt.Fprintf(w, "validation: windows=%d loss=%.6f coverage=%.3f (target %.3f)\n",
		y.Shape()[0], loss, cov, model.Alpha())
	meta["validation_loss"] = strconv.FormatFloat(float64(loss), 'g', -1, 32)
	meta["validation_coverage"] = strconv.FormatFloat(cov, 'g', -1, 64)
	return nil
}

// coverage returns the fraction of targets at or below their prediction.
func coverage(pred, y *tensor.RawTensor) float64 {
	p, t := pred.AsFloat32(), y.AsFloat32()
	below := 0
	for i := range t {
		if t[i] <= p[i] {
			below++
		}
	}
	return float64(below) / float64(len(t))
}

func loadSeries(cfg config.Data, root rng.Key) (window.Series, error) {
	if cfg.Path != "" {
		return window.LoadCSVFile(cfg.Path, cfg.Column)
	}
	return window.Synthetic(cfg.Synthetic, root.FoldString("data")), nil
}

func newOptimizer(cfg config.Train) optim.Optimizer {
	if strings.EqualFold(cfg.Optimizer, "sgd") {
		return optim.NewSGD(optim.SGDConfig{LR: cfg.LearningRate, Momentum: cfg.Momentum})
	}
	return optim.NewAdam(optim.AdamConfig{LR: cfg.LearningRate})
}

func newProgress(kind string, w io.Writer, logger *slog.Logger, total int) train.Progress {
	switch strings.ToLower(kind) {
	case "none":
		return train.NopProgress()
	case "log":
		return train.NewLogProgress(logger, max(total/10, 1))
	default:
		return train.NewBarProgress(w, "training")
	}
}

func printSummary(w io.Writer, s train.Summary) {
	if s.Steps == 0 {
		fmt.Fprintln(w, "training: no steps run")
		return
	}
	fmt.Fprintf(w, "training: steps=%d first=%.6f last=%.6f mean=%.6f std=%.6f\n",
		s.Steps, s.First, s.Last, s.Mean, s.StdDev)
	fmt.Fprintf(w, "training: head_mean=%.6f tail_mean=%.6f min=%.6f max=%.6f improved=%t\n",
		s.HeadMean, s.TailMean, s.Min, s.Max, s.Improved())
}
