// Package swarm fans out independent hypotheses over a bounded worker pool
// and fans their results back into a single synthesized answer.
package swarm

import "time"

// Task status values. A task transitions pending→running→done|error
// exactly once.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// DefaultConcurrency caps simultaneously running tasks
const DefaultConcurrency = 5

// DefaultSynthesisResultLimit truncates per-task results embedded in the
// synthesis prompt.
const DefaultSynthesisResultLimit = 500

// TaskSpec describes one independent hypothesis to investigate
type TaskSpec struct {
	Hypothesis string                 `json:"hypothesis"`
	Tool       string                 `json:"tool"`
	Args       map[string]interface{} `json:"args"`
}

// AgentTask is the tracked execution state of one TaskSpec
type AgentTask struct {
	ID         string                 `json:"id"`
	Hypothesis string                 `json:"hypothesis"`
	Tool       string                 `json:"tool"`
	Args       map[string]interface{} `json:"args"`
	Status     string                 `json:"status"`
	Result     string                 `json:"result"`
	ElapsedMs  int64                  `json:"elapsed_ms"`
}

// Result is the outcome of one ExecuteParallel call
type Result struct {
	Tasks          []*AgentTask `json:"tasks"`
	Synthesis      string       `json:"synthesis"`
	TotalElapsedMs int64        `json:"total_elapsed_ms"`
}

// Config tunes the executor
type Config struct {
	// Concurrency caps simultaneously running tasks
	Concurrency int

	// SynthesisResultLimit truncates each task result in the synthesis prompt
	SynthesisResultLimit int

	// TaskTimeout bounds a single task's tool execution
	TaskTimeout time.Duration
}

// DefaultSwarmConfig returns the tuned defaults
func DefaultSwarmConfig() Config {
	return Config{
		Concurrency:          DefaultConcurrency,
		SynthesisResultLimit: DefaultSynthesisResultLimit,
		TaskTimeout:          30 * time.Second,
	}
}
