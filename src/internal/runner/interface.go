package runner

import "github.com/gh-nvat/conda-envsync/src/pkg/models"

type RunnerInterface interface {
	// Initialize the runner with necessary collaborators and configuration
	Initialize() error

	// Main routine: process every environment and write the run report.
	// Returns an error when the run could not start, or when at least one
	// environment did not finish cleanly (the report is written either way).
	Process() error

	// Handling the report export
	Output(rep *models.RunReport) error
}
