package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gh-nvat/conda-envsync/src/pkg/analyze"
	"github.com/gh-nvat/conda-envsync/src/pkg/conda"
	"github.com/gh-nvat/conda-envsync/src/pkg/manifest"
	"github.com/gh-nvat/conda-envsync/src/pkg/models"
	"github.com/gh-nvat/conda-envsync/src/pkg/report"
	"github.com/gh-nvat/conda-envsync/src/pkg/supervise"
	"github.com/gh-nvat/conda-envsync/src/pkg/trace"
)

// RunnerExport backs up every named environment to a manifest file in the
// manifests directory (prefix line stripped for portability).
type RunnerExport struct {
	RunnerBase
}

// make RunnerExport implement RunnerInterface
var _ RunnerInterface = (*RunnerExport)(nil)

func NewRunnerExport(
	ctx context.Context,
	options *Options,
	client conda.Client,
	analyzer *analyze.Analyzer,
	executor *supervise.Executor,
	renderer *report.Renderer,
) (*RunnerExport, error) {
	baseRunner, err := NewRunnerBase(ctx, options, client, analyzer, executor, renderer)
	if err != nil {
		return nil, err
	}
	return &RunnerExport{RunnerBase: *baseRunner}, nil
}

func (r *RunnerExport) Process() error {
	ctx, span := trace.StartSpan(r.Context, "Process")
	defer span.End()

	logger.Info("Process: starting...")

	names, err := r.Client.EnvNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list environments: %w", err)
	}
	if len(names) == 0 {
		logger.Warn("No named environments found to export")
	}

	if err := os.MkdirAll(r.Options.ManifestsDir, 0755); err != nil {
		return fmt.Errorf("failed to create manifests directory: %w", err)
	}

	rep := models.NewRunReport("export")
	for _, name := range names {
		envCtx, envSpan := trace.StartSpan(ctx, fmt.Sprintf("Export.%s", name))
		outcome := r.exportOne(envCtx, rep, name)
		rep.Record(outcome)
		envSpan.End()

		logger.WithField("env", name).WithField("status", outcome.Status).Info("Environment exported")
	}
	rep.Finalize()

	if err := r.Output(rep); err != nil {
		return err
	}

	logger.Info("Process: done.")
	if failed := rep.FailedCount(); failed > 0 {
		return fmt.Errorf("%d of %d environments did not export cleanly (see report)", failed, rep.TotalProcessed)
	}
	return nil
}

// exportOne captures one environment's manifest; errors become FAILED
// outcomes so one environment can't abort the backup run
func (r *RunnerExport) exportOne(ctx context.Context, rep *models.RunReport, name string) models.Outcome {
	content, err := r.Client.ExportEnv(ctx, name)
	if err != nil {
		return models.Outcome{
			Environment:  name,
			Status:       models.StatusFailed,
			Operation:    models.OperationExport,
			Complexity:   models.ComplexityStandard,
			FailureClass: models.FailureManager,
			Diagnostic:   err.Error(),
		}
	}
	content = manifest.StripPrefixLines(content)

	// Classify the exported manifest so the backup report already shows
	// which environments will need the supervised path on restore
	exported := models.Manifest{Name: name, Content: content, SizeBytes: len(content)}
	classification := r.Analyzer.Classify(ctx, exported)
	rep.RecordClassification(name, classification)

	path := filepath.Join(r.Options.ManifestsDir, name+".yml")
	if err := os.WriteFile(path, content, 0644); err != nil {
		return models.Outcome{
			Environment:  name,
			Status:       models.StatusFailed,
			Operation:    models.OperationExport,
			Complexity:   classification.Class,
			FailureClass: models.FailureManager,
			Diagnostic:   fmt.Sprintf("failed to write manifest %s: %v", path, err),
		}
	}

	return models.Outcome{
		Environment: name,
		Status:      models.StatusSuccess,
		Operation:   models.OperationExport,
		Complexity:  classification.Class,
	}
}
