// Package react runs a bounded reason/act/observe loop for one task: the
// model decides which tool to invoke, the observation is fed back into the
// transcript, and the loop repeats until a final answer or the iteration cap.
package react

import "time"

// Status values reported by Run
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DefaultMaxIterations bounds a run when the caller does not set a cap
const DefaultMaxIterations = 10

// RunParams describes one execution run
type RunParams struct {
	// Goal is the natural-language task to accomplish
	Goal string

	// Context carries auxiliary key/values (active dashboard, datasource id)
	// embedded into the prompt and passed to tool handlers.
	Context map[string]interface{}

	// ThreadID enables durable mode: state is checkpointed under this id and
	// resumed on the next run. Empty means ephemeral.
	ThreadID string

	// MaxIterations overrides the configured cap when positive
	MaxIterations int
}

// RunResult is the well-formed result every run produces. Run never returns
// a Go error; faults surface as Status "error" with the message as
// FinalResponse.
type RunResult struct {
	FinalResponse  string `json:"final_response"`
	Status         string `json:"status"`
	IterationCount int    `json:"iteration_count"`
}

// Config tunes the loop
type Config struct {
	// MaxIterations caps THINK cycles per run
	MaxIterations int

	// ToolTimeout bounds a single tool execution
	ToolTimeout time.Duration

	// MinRetryConfidence is the floor below which the loop stops retrying
	// after tool failures and asks for a final answer instead. Confidence is
	// the fraction of the iteration budget still remaining.
	MinRetryConfidence float64
}

// DefaultConfig returns the tuned defaults
func DefaultConfig() Config {
	return Config{
		MaxIterations:      DefaultMaxIterations,
		ToolTimeout:        30 * time.Second,
		MinRetryConfidence: 0.3,
	}
}
