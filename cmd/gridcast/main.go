// Package main provides the gridcast CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridcast/gridcast/internal/backend/cpu"
)

const version = "v0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches a subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stdout)
		return 2
	}

	var err error
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "gridcast %s\n", version)
		fmt.Fprintf(stdout, "backend: %s\n", cpu.New().Name())
		return 0
	case "train":
		err = trainCommand(ctx, args[1:], stdout, stderr)
	case "predict":
		err = predictCommand(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	if err != nil {
		fmt.Fprintf(stderr, "gridcast %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "gridcast - quantile load forecasting")
	fmt.Fprintf(w, "Version: %s\n\n", version)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  train      Fit a quantile forecaster and write a checkpoint")
	fmt.Fprintln(w, "  predict    Forecast the next value of a series from a checkpoint")
	fmt.Fprintln(w, "  version    Show version")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'gridcast <command> -h' for command flags.")
}
