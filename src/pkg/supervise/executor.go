// Package supervise runs manager subcommands as cancellable units of work
// under a hard deadline, and classifies their outcomes.
package supervise

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/gh-nvat/conda-envsync/src/pkg/models"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "supervise")

const (
	// DEFAULT_TIMEOUT is the per-environment deadline when none is configured
	DEFAULT_TIMEOUT = 600 * time.Second

	// MAX_DIAGNOSTIC_BYTES bounds the raw output carried into an outcome
	MAX_DIAGNOSTIC_BYTES = 4096
)

// PIP_ERROR_SIGNATURES mark failures that happened inside the embedded pip
// resolver rather than in the manager's own solver. Checked in order.
var PIP_ERROR_SIGNATURES = []string{
	"ResolutionImpossible",
	"pip._internal",
	"Pip subprocess error",
	"Cannot install",
}

// CommandBuilder is the slice of the manager client the executor needs:
// where the binary lives and how to phrase create/update invocations.
type CommandBuilder interface {
	Path() string
	CreateArgs(name, manifestPath string, libmamba bool) []string
	UpdateArgs(name, manifestPath string, libmamba bool) []string
}

// Request describes one supervised create/update attempt
type Request struct {
	Environment  string
	ManifestPath string
	Operation    models.Operation
	Complexity   models.ComplexityClass
	Timeout      time.Duration
}

// Executor runs one manager subcommand at a time under a deadline.
// Exactly one subordinate process may be outstanding per Run call, and it
// never outlives the call: on timeout the whole process group is killed
// and reaped before the outcome is returned.
type Executor struct {
	builder CommandBuilder
}

func NewExecutor(builder CommandBuilder) *Executor {
	return &Executor{builder: builder}
}

// Run executes the create/update subcommand for req with the libmamba
// solver flag, captures combined output, and waits up to req.Timeout.
// It always returns an outcome; launch errors become FAILED outcomes and
// never propagate to the caller.
func (e *Executor) Run(req Request) models.Outcome {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_TIMEOUT
	}

	var args []string
	switch req.Operation {
	case models.OperationUpdate:
		args = e.builder.UpdateArgs(req.Environment, req.ManifestPath, true)
	default:
		args = e.builder.CreateArgs(req.Environment, req.ManifestPath, true)
	}

	logger.WithField("env", req.Environment).WithField("operation", req.Operation).
		WithField("timeout", timeout).Info("Starting supervised execution")

	var output bytes.Buffer
	cmd := exec.Command(e.builder.Path(), args...)
	cmd.Stdout = &output
	cmd.Stderr = &output
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return models.Outcome{
			Environment:  req.Environment,
			Status:       models.StatusFailed,
			Operation:    req.Operation,
			Complexity:   req.Complexity,
			FailureClass: models.FailureManager,
			Diagnostic:   fmt.Sprintf("failed to launch manager process: %v", err),
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return e.classify(req, output.Bytes(), err)
	case <-timer.C:
		logger.WithField("env", req.Environment).Warn("Deadline exceeded, terminating manager process")
		if err := killProcessGroup(cmd); err != nil {
			logger.WithField("env", req.Environment).WithField("error", err).Warn("Failed to kill process group")
		}
		// Reap before returning: no subordinate process outlives this call
		<-done
		return models.Outcome{
			Environment: req.Environment,
			Status:      models.StatusTimedOut,
			Operation:   req.Operation,
			Complexity:  req.Complexity,
			Diagnostic:  fmt.Sprintf("deadline exceeded after %s", timeout),
		}
	}
}

// classify turns an exit status plus captured output into an outcome
func (e *Executor) classify(req Request, output []byte, waitErr error) models.Outcome {
	if waitErr == nil {
		logger.WithField("env", req.Environment).Info("Supervised execution succeeded")
		return models.Outcome{
			Environment: req.Environment,
			Status:      models.StatusSuccess,
			Operation:   req.Operation,
			Complexity:  req.Complexity,
		}
	}

	text := string(output)
	if matched := matchingLines(text, PIP_ERROR_SIGNATURES); len(matched) > 0 {
		return models.Outcome{
			Environment:  req.Environment,
			Status:       models.StatusFailed,
			Operation:    req.Operation,
			Complexity:   req.Complexity,
			FailureClass: models.FailurePip,
			Diagnostic:   strings.Join(matched, "\n"),
		}
	}

	return models.Outcome{
		Environment:  req.Environment,
		Status:       models.StatusFailed,
		Operation:    req.Operation,
		Complexity:   req.Complexity,
		FailureClass: models.FailureManager,
		Diagnostic:   tail(text, MAX_DIAGNOSTIC_BYTES),
	}
}

// matchingLines returns the output lines containing any of the signatures
func matchingLines(text string, signatures []string) []string {
	var matched []string
	for _, line := range strings.Split(text, "\n") {
		for _, sig := range signatures {
			if strings.Contains(line, sig) {
				matched = append(matched, strings.TrimSpace(line))
				break
			}
		}
	}
	return matched
}

func tail(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	return "..." + text[len(text)-max:]
}
