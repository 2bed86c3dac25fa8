package conda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "conda")

var (
	// ErrManagerNotFound indicates that no conda-compatible executable could be located
	ErrManagerNotFound = errors.New("conda executable not found")
)

const (
	// SOLVER_FLAG selects the faster libmamba solver; appended to every
	// supervised create/update so complex environments get the quick solver.
	SOLVER_FLAG = "--solver=libmamba"

	CONDA_EXE_ENV = "CONDA_EXE"
)

// CANDIDATE_BINARIES are probed on PATH, in order, when CONDA_EXE is unset
var CANDIDATE_BINARIES = []string{"conda", "mamba", "micromamba"}

// Client is the narrow surface of the external package manager the
// orchestrator depends on: environment listing, manifest export, and
// create/update invocations returning exit status plus combined output.
type Client interface {
	Path() string
	EnvNames(ctx context.Context) ([]string, error)
	EnvExists(ctx context.Context, name string) (bool, error)
	ExportEnv(ctx context.Context, name string) ([]byte, error)
	CreateEnv(ctx context.Context, name, manifestPath string) ([]byte, error)
	UpdateEnv(ctx context.Context, name, manifestPath string) ([]byte, error)
	CreateArgs(name, manifestPath string, libmamba bool) []string
	UpdateArgs(name, manifestPath string, libmamba bool) []string
	UpgradePip(ctx context.Context, name string) error
}

// CLI drives a conda-compatible binary over its command-line interface
type CLI struct {
	binPath string
}

// make CLI implement Client
var _ Client = (*CLI)(nil)

// Locate finds the manager binary: CONDA_EXE first, then PATH candidates
func Locate() (*CLI, error) {
	if exe := os.Getenv(CONDA_EXE_ENV); exe != "" {
		if _, err := os.Stat(exe); err == nil {
			logger.WithField("path", exe).Debug("Using manager from CONDA_EXE")
			return &CLI{binPath: exe}, nil
		}
		logger.WithField("path", exe).Warn("CONDA_EXE is set but does not exist, probing PATH")
	}
	for _, candidate := range CANDIDATE_BINARIES {
		if path, err := exec.LookPath(candidate); err == nil {
			logger.WithField("path", path).Debug("Located manager on PATH")
			return &CLI{binPath: path}, nil
		}
	}
	return nil, ErrManagerNotFound
}

// NewCLI wraps an already-located binary path
func NewCLI(binPath string) *CLI {
	return &CLI{binPath: binPath}
}

func (c *CLI) Path() string {
	return c.binPath
}

// EnvNames lists the named environments known to the manager. The base
// environment (the install prefix itself) is excluded: it is not backed by
// a manifest and is never a restore target.
func (c *CLI) EnvNames(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, c.binPath, "env", "list", "--json")

	// Output() rather than CombinedOutput() keeps stderr warnings out of the JSON
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("env list failed: %w\nStderr: %s", err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("env list failed: %w", err)
	}

	var listing struct {
		Envs []string `json:"envs"`
	}
	if err := json.Unmarshal(output, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse env list output: %w", err)
	}

	var names []string
	for _, envPath := range listing.Envs {
		// Named environments live under an "envs" directory; the one entry
		// that doesn't is the base prefix.
		if filepath.Base(filepath.Dir(envPath)) != "envs" {
			continue
		}
		names = append(names, filepath.Base(envPath))
	}
	return names, nil
}

func (c *CLI) EnvExists(ctx context.Context, name string) (bool, error) {
	names, err := c.EnvNames(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ExportEnv captures the declared dependency set of one environment
func (c *CLI) ExportEnv(ctx context.Context, name string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, c.binPath, "env", "export", "--name", name)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("env export failed for %s: %w\nStderr: %s", name, err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("env export failed for %s: %w", name, err)
	}
	return output, nil
}

// CreateArgs builds the argument list for creating an environment from a
// manifest. libmamba toggles the alternate solver flag.
func (c *CLI) CreateArgs(name, manifestPath string, libmamba bool) []string {
	args := []string{"env", "create", "--file", manifestPath, "--name", name, "--yes"}
	if libmamba {
		args = append(args, SOLVER_FLAG)
	}
	return args
}

// UpdateArgs builds the argument list for updating an environment in place.
// --prune drops packages no longer declared in the manifest.
func (c *CLI) UpdateArgs(name, manifestPath string, libmamba bool) []string {
	args := []string{"env", "update", "--name", name, "--file", manifestPath, "--prune"}
	if libmamba {
		args = append(args, SOLVER_FLAG)
	}
	return args
}

// CreateEnv runs a plain synchronous create with no enforced deadline
// (the standard-manifest path). Returns combined output in both cases.
func (c *CLI) CreateEnv(ctx context.Context, name, manifestPath string) ([]byte, error) {
	return c.runDirect(ctx, c.CreateArgs(name, manifestPath, false))
}

// UpdateEnv runs a plain synchronous update with no enforced deadline
func (c *CLI) UpdateEnv(ctx context.Context, name, manifestPath string) ([]byte, error) {
	return c.runDirect(ctx, c.UpdateArgs(name, manifestPath, false))
}

func (c *CLI) runDirect(ctx context.Context, args []string) ([]byte, error) {
	logger.WithField("args", args).Debug("Running manager command")
	cmd := exec.CommandContext(ctx, c.binPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, fmt.Errorf("manager command failed: %w", err)
	}
	return output, nil
}

// UpgradePip upgrades pip inside an environment. Best-effort post-step:
// callers log failures and keep the environment's outcome unchanged.
func (c *CLI) UpgradePip(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, c.binPath, "run", "--name", name, "python", "-m", "pip", "install", "--upgrade", "pip")
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pip upgrade failed for %s: %w\nOutput: %s", name, err, string(output))
	}
	return nil
}
