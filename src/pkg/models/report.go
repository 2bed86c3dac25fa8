package models

import "time"

// RunReport is the aggregate of all outcomes for one run. It is built
// incrementally by the orchestrator (its single owner during the run),
// finalized once at run end, and only then handed to the report renderer.
type RunReport struct {
	Mode       string    `json:"mode"` // "restore" or "export"
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	TotalProcessed int `json:"totalProcessed"`
	SuccessCount   int `json:"successCount"`

	FailedEnvironments   []string `json:"failedEnvironments"`
	TimeoutEnvironments  []string `json:"timeoutEnvironments"`
	ComplexEnvironments  []string `json:"complexEnvironments"`
	StandardEnvironments []string `json:"standardEnvironments"`
	CreatedEnvironments  []string `json:"createdEnvironments"`
	UpdatedEnvironments  []string `json:"updatedEnvironments"`

	// Outcomes keyed by environment name; order preserves processing order
	Outcomes map[string]Outcome `json:"outcomes"`
	order    []string
}

func NewRunReport(mode string) *RunReport {
	return &RunReport{
		Mode:      mode,
		StartedAt: time.Now(),
		Outcomes:  make(map[string]Outcome),
	}
}

// RecordClassification tallies the complexity class of an environment.
// Called once per environment, before its outcome is recorded.
func (r *RunReport) RecordClassification(env string, c Classification) {
	if c.IsComplex() {
		r.ComplexEnvironments = append(r.ComplexEnvironments, env)
	} else {
		r.StandardEnvironments = append(r.StandardEnvironments, env)
	}
}

// Record stores the terminal outcome for one environment and updates the
// tallies. Must be called exactly once per processed environment.
func (r *RunReport) Record(o Outcome) {
	if _, seen := r.Outcomes[o.Environment]; !seen {
		r.order = append(r.order, o.Environment)
	}
	r.Outcomes[o.Environment] = o
	r.TotalProcessed++

	switch o.Status {
	case StatusSuccess:
		r.SuccessCount++
		switch o.Operation {
		case OperationUpdate:
			r.UpdatedEnvironments = append(r.UpdatedEnvironments, o.Environment)
		default:
			r.CreatedEnvironments = append(r.CreatedEnvironments, o.Environment)
		}
	case StatusTimedOut:
		r.TimeoutEnvironments = append(r.TimeoutEnvironments, o.Environment)
	default:
		r.FailedEnvironments = append(r.FailedEnvironments, o.Environment)
	}
}

// Finalize stamps the end of the run. The report must not be mutated after.
func (r *RunReport) Finalize() {
	r.FinishedAt = time.Now()
}

func (r *RunReport) FailedCount() int {
	return len(r.FailedEnvironments)
}

func (r *RunReport) TimeoutCount() int {
	return len(r.TimeoutEnvironments)
}

// SuccessRate returns successes / total, and 0 for an empty run
func (r *RunReport) SuccessRate() float64 {
	if r.TotalProcessed == 0 {
		return 0
	}
	return float64(r.SuccessCount) / float64(r.TotalProcessed)
}

// EnvironmentNames returns environment names in processing order
func (r *RunReport) EnvironmentNames() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}
