package runner

import (
	"context"
	"fmt"

	"github.com/gh-nvat/conda-envsync/src/pkg/analyze"
	"github.com/gh-nvat/conda-envsync/src/pkg/conda"
	"github.com/gh-nvat/conda-envsync/src/pkg/models"
	"github.com/gh-nvat/conda-envsync/src/pkg/report"
	"github.com/gh-nvat/conda-envsync/src/pkg/supervise"
	"github.com/gh-nvat/conda-envsync/src/pkg/trace"

	log "github.com/sirupsen/logrus"
)

var logger *log.Entry = log.New().WithFields(log.Fields{
	"package": "runner",
})

type RunnerBase struct {
	Context context.Context
	Options *Options

	Client   conda.Client
	Analyzer *analyze.Analyzer
	Executor *supervise.Executor
	Renderer *report.Renderer
}

func NewRunnerBase(
	ctx context.Context,
	options *Options,
	client conda.Client,
	analyzer *analyze.Analyzer,
	executor *supervise.Executor,
	renderer *report.Renderer,
) (*RunnerBase, error) {
	runner := &RunnerBase{
		Context:  ctx,
		Options:  options,
		Client:   client,
		Analyzer: analyzer,
		Executor: executor,
		Renderer: renderer,
	}
	return runner, nil
}

func (r *RunnerBase) Initialize() error {
	logger.Info("Initializing runner: starting...")

	// if any is nil, return error
	if r.Client == nil || r.Analyzer == nil || r.Executor == nil || r.Renderer == nil {
		return fmt.Errorf("client, analyzer, executor, and renderer are required")
	}

	if r.Options.PoliciesPath != "" {
		logger.Info("Initialize runner: loading complexity policies")
		policies, err := analyze.LoadPolicies(r.Context, r.Options.PoliciesPath)
		if err != nil {
			return fmt.Errorf("failed to load complexity policies: %w", err)
		}
		r.Analyzer.AttachPolicies(policies)
	}

	logger.Info("Initialize runner: done.")
	return nil
}

// Output writes the text report, plus the JSON export when enabled
func (r *RunnerBase) Output(rep *models.RunReport) error {
	_, span := trace.StartSpan(r.Context, "Output")
	defer span.End()

	logger.Info("Output: starting...")
	reportPath, err := r.Renderer.Persist(rep, r.Options.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to persist report: %w", err)
	}
	logger.WithField("reportPath", reportPath).Info("Run report written")

	if r.Options.EnableExportReport {
		if err := r.Renderer.ExportJSON(rep, r.Options.OutputDir); err != nil {
			return fmt.Errorf("failed to export JSON report: %w", err)
		}
	} else {
		logger.Info("Output: JSON export was disabled")
	}
	logger.Info("Output: done.")
	return nil
}
