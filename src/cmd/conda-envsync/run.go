package main

import (
	"context"
	"fmt"

	"github.com/gh-nvat/conda-envsync/src/internal/runner"
	"github.com/gh-nvat/conda-envsync/src/pkg/analyze"
	"github.com/gh-nvat/conda-envsync/src/pkg/conda"
	"github.com/gh-nvat/conda-envsync/src/pkg/report"
	"github.com/gh-nvat/conda-envsync/src/pkg/supervise"
	"github.com/gh-nvat/conda-envsync/src/pkg/trace"
	log "github.com/sirupsen/logrus"
)

var logger *log.Entry = log.New().WithFields(log.Fields{
	"package": "run",
})

const (
	RUN_MODE_RESTORE = "restore"
	RUN_MODE_EXPORT  = "export"
)

// createRunner locates the external manager and wires up the runner for the
// requested mode. A missing manager binary is fatal here, before any
// environment is touched.
func createRunner(ctx context.Context, mode string, opts *runner.Options) (runner.RunnerInterface, error) {
	logger.WithField("mode", mode).Debug("Creating runner..")

	client, err := conda.Locate()
	if err != nil {
		return nil, fmt.Errorf("cannot locate package manager: %w", err)
	}
	analyzer := analyze.NewAnalyzer()
	executor := supervise.NewExecutor(client)
	renderer := report.NewRenderer()

	switch mode {
	case RUN_MODE_RESTORE:
		r, err := runner.NewRunnerRestore(ctx, opts, client, analyzer, executor, renderer)
		if err != nil {
			return nil, fmt.Errorf("failed to create restore runner: %w", err)
		}
		return r, nil
	case RUN_MODE_EXPORT:
		r, err := runner.NewRunnerExport(ctx, opts, client, analyzer, executor, renderer)
		if err != nil {
			return nil, fmt.Errorf("failed to create export runner: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("invalid run mode: %s", mode)
	}
}

func initialize(ctx context.Context, mode string, opts *runner.Options) (runner.RunnerInterface, error) {
	appRunner, err := createRunner(ctx, mode, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create runner: %w", err)
	}
	if err := appRunner.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize runner: %w", err)
	}
	return appRunner, nil
}

func run(ctx context.Context, mode string, opts *runner.Options) error {
	logger.WithField("mode", mode).Info("Running..")
	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}

	// Initialize tracer
	shutdown, err := trace.InitTracer("conda-envsync", opts.EnableExportPerformanceReport, opts.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer shutdown()

	// Validate options
	if err := validateOptions(mode, opts); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	// Initialize runner
	appRunner, err := initialize(ctx, mode, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	if err := appRunner.Process(); err != nil {
		return fmt.Errorf("failed to process: %w", err)
	}

	return nil
}

func validateOptions(mode string, opts *runner.Options) error {
	if mode != RUN_MODE_RESTORE && mode != RUN_MODE_EXPORT {
		return fmt.Errorf("run mode must be 'restore' or 'export', got: %s", mode)
	}
	if opts.ManifestsDir == "" {
		return fmt.Errorf("--manifests-dir cannot be empty")
	}
	if opts.OutputDir == "" {
		return fmt.Errorf("--output-dir cannot be empty")
	}
	if mode == RUN_MODE_RESTORE && opts.TimeoutSeconds <= 0 {
		return fmt.Errorf("--timeout must be positive, got: %d", opts.TimeoutSeconds)
	}
	return nil
}
