package runner

import "time"

const (
	DEFAULT_MANIFESTS_DIR   = "./environments"
	DEFAULT_OUTPUT_DIR      = "./output"
	DEFAULT_TIMEOUT_SECONDS = 600
)

type Options struct {
	Debug bool

	// ManifestsDir is the source (restore) or target (export) directory of
	// environment manifests
	ManifestsDir string

	// OutputDir receives the run report and optional JSON/performance exports
	OutputDir string

	// TimeoutSeconds is the per-environment deadline for supervised
	// create/update attempts
	TimeoutSeconds int

	// Upgrade strips version pins from each manifest before restoring, so
	// the solver may move every environment to current package versions
	Upgrade bool

	// PoliciesPath optionally points at a directory of rego complexity
	// policies extending the builtin classification rules
	PoliciesPath string

	EnableExportReport            bool
	EnableExportPerformanceReport bool
}

func (o *Options) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}
