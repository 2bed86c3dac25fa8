package runner

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gh-nvat/conda-envsync/src/pkg/analyze"
	"github.com/gh-nvat/conda-envsync/src/pkg/conda"
	"github.com/gh-nvat/conda-envsync/src/pkg/manifest"
	"github.com/gh-nvat/conda-envsync/src/pkg/models"
	"github.com/gh-nvat/conda-envsync/src/pkg/report"
	"github.com/gh-nvat/conda-envsync/src/pkg/supervise"
	"github.com/gh-nvat/conda-envsync/src/pkg/trace"
)

// RunnerRestore recreates or updates environments from the manifests
// directory, one environment at a time. Strictly sequential: concurrent
// manager invocations against a shared package cache risk corruption.
type RunnerRestore struct {
	RunnerBase
}

// make RunnerRestore implement RunnerInterface
var _ RunnerInterface = (*RunnerRestore)(nil)

func NewRunnerRestore(
	ctx context.Context,
	options *Options,
	client conda.Client,
	analyzer *analyze.Analyzer,
	executor *supervise.Executor,
	renderer *report.Renderer,
) (*RunnerRestore, error) {
	baseRunner, err := NewRunnerBase(ctx, options, client, analyzer, executor, renderer)
	if err != nil {
		return nil, err
	}
	return &RunnerRestore{RunnerBase: *baseRunner}, nil
}

func (r *RunnerRestore) Process() error {
	ctx, span := trace.StartSpan(r.Context, "Process")
	defer span.End()

	logger.Info("Process: starting...")

	// Fatal before any environment is touched: missing or empty manifest dir
	manifests, err := manifest.Discover(r.Options.ManifestsDir)
	if err != nil {
		return err
	}

	// One scratch directory per run for derived (unpinned) manifests,
	// removed on every exit path
	scratchDir, err := os.MkdirTemp("", "envsync-scratch-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			logger.WithField("scratchDir", scratchDir).WithField("error", err).Warn("Failed to remove scratch directory")
		}
	}()

	rep := models.NewRunReport("restore")
	for _, m := range manifests {
		envCtx, envSpan := trace.StartSpan(ctx, fmt.Sprintf("Restore.%s", m.Name))
		outcome := r.restoreOne(envCtx, rep, m, scratchDir)
		rep.Record(outcome)
		envSpan.End()

		logger.WithField("env", m.Name).WithField("status", outcome.Status).Info("Environment processed")
	}
	rep.Finalize()

	if err := r.Output(rep); err != nil {
		return err
	}

	logger.Info("Process: done.")
	if unclean := rep.FailedCount() + rep.TimeoutCount(); unclean > 0 {
		return fmt.Errorf("%d of %d environments did not restore cleanly (see report)", unclean, rep.TotalProcessed)
	}
	return nil
}

// restoreOne takes one manifest to its terminal outcome. Every error past
// discovery is converted into a FAILED outcome here; one environment's
// failure must never abort the run.
func (r *RunnerRestore) restoreOne(ctx context.Context, rep *models.RunReport, m models.Manifest, scratchDir string) models.Outcome {
	if r.Options.Upgrade {
		m = manifest.StripPins(m, scratchDir)
	}

	classification := r.Analyzer.Classify(ctx, m)
	rep.RecordClassification(m.Name, classification)
	logger.WithField("env", m.Name).WithField("class", classification.Class).
		WithField("reason", classification.Reason).Info("Classified manifest")

	exists, err := r.Client.EnvExists(ctx, m.Name)
	if err != nil {
		return models.Outcome{
			Environment:  m.Name,
			Status:       models.StatusFailed,
			Operation:    models.OperationCreate,
			Complexity:   classification.Class,
			FailureClass: models.FailureManager,
			Diagnostic:   fmt.Sprintf("failed to check environment existence: %v", err),
		}
	}
	operation := models.OperationCreate
	if exists {
		operation = models.OperationUpdate
	}

	var outcome models.Outcome
	if classification.IsComplex() {
		// Complex manifests always go through the supervised path with the
		// deadline and the libmamba solver
		outcome = r.Executor.Run(supervise.Request{
			Environment:  m.Name,
			ManifestPath: m.Path,
			Operation:    operation,
			Complexity:   classification.Class,
			Timeout:      r.Options.Timeout(),
		})
	} else {
		outcome = r.runDirect(ctx, m, operation, classification)
	}

	if outcome.Status == models.StatusSuccess {
		// Best-effort post-step; failure is logged and never downgrades
		// the recorded outcome
		if err := r.Client.UpgradePip(ctx, m.Name); err != nil {
			logger.WithField("env", m.Name).WithField("error", err).Warn("Post-step pip upgrade failed")
		}
	}
	return outcome
}

// runDirect invokes the manager synchronously with no enforced deadline
// (the standard-manifest path)
func (r *RunnerRestore) runDirect(ctx context.Context, m models.Manifest, operation models.Operation, classification models.Classification) models.Outcome {
	var output []byte
	var err error
	if operation == models.OperationUpdate {
		output, err = r.Client.UpdateEnv(ctx, m.Name, m.Path)
	} else {
		output, err = r.Client.CreateEnv(ctx, m.Name, m.Path)
	}
	if err != nil {
		diagnostic := strings.TrimSpace(string(output))
		if diagnostic == "" {
			diagnostic = err.Error()
		}
		return models.Outcome{
			Environment:  m.Name,
			Status:       models.StatusFailed,
			Operation:    operation,
			Complexity:   classification.Class,
			FailureClass: models.FailureManager,
			Diagnostic:   diagnostic,
		}
	}
	return models.Outcome{
		Environment: m.Name,
		Status:      models.StatusSuccess,
		Operation:   operation,
		Complexity:  classification.Class,
	}
}
