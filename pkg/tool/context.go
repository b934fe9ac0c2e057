package tool

import "time"

// ExecutionContext provides runtime information for tool execution
type ExecutionContext struct {
	ThreadID   string
	WorkingDir string
	Timeout    time.Duration

	// Vars carries caller-supplied key/values (active dashboard, datasource
	// id, report filters) that handlers may consult.
	Vars map[string]interface{}
}
