package models

// Operation is the manager operation performed for an environment
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationExport Operation = "export"
)

// ComplexityClass is the estimated install risk of a manifest
type ComplexityClass string

const (
	ComplexityStandard ComplexityClass = "standard"
	ComplexityComplex  ComplexityClass = "complex"
)

// Classification is the analyzer verdict for one manifest.
// Reason carries the matched rule in human-readable form.
type Classification struct {
	Class  ComplexityClass `json:"class"`
	Reason string          `json:"reason"`
}

func (c Classification) IsComplex() bool {
	return c.Class == ComplexityComplex
}

// OutcomeStatus is the terminal state of one environment in a run
type OutcomeStatus string

const (
	StatusSuccess  OutcomeStatus = "success"
	StatusFailed   OutcomeStatus = "failed"
	StatusTimedOut OutcomeStatus = "timed_out"
)

// FailureClass distinguishes where a failed install broke down:
// inside the embedded pip resolver or in the manager itself.
type FailureClass string

const (
	FailureNone    FailureClass = ""
	FailurePip     FailureClass = "pip"
	FailureManager FailureClass = "manager"
)

// Outcome is the terminal result for one environment in one run.
// Immutable after creation; a retry produces a new Outcome, never an update.
type Outcome struct {
	Environment  string          `json:"environment"`
	Status       OutcomeStatus   `json:"status"`
	Operation    Operation       `json:"operation"`
	Complexity   ComplexityClass `json:"complexity"`
	FailureClass FailureClass    `json:"failureClass,omitempty"`

	// Diagnostic is the captured output or error text; empty on success
	Diagnostic string `json:"diagnostic,omitempty"`
}
