// Package tool provides the named tool registry used by the execution
// engine. Handlers are opaque string-in/string-out collaborators: execution
// faults are absorbed into textual observations so the reasoning loop always
// receives a string result it can react to, never a fault.
package tool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meridianbi/meridian/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// maxObservationSize caps tool output fed back into the transcript
const maxObservationSize = 10 * 1024 // 10KB

// defaultTimeout bounds a single tool execution
const defaultTimeout = 30 * time.Second

// Handler is the fixed signature every tool implements. Handlers that do not
// need the execution context simply ignore it.
type Handler func(ctx context.Context, args map[string]interface{}, execCtx *ExecutionContext) (string, error)

// Parameter defines a parameter for a tool
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Definition defines a tool's metadata and handler
type Definition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Handler     Handler     `json:"-"`
}

// Registry manages and executes named tools. Registration happens once at
// startup; the registry is immutable thereafter from the engine's point of
// view, but the lock keeps concurrent swarm reads safe regardless.
type Registry struct {
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	mu      sync.RWMutex
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	observability.EnsureRegistered()

	return &Registry{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register registers a new tool
func (r *Registry) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := generateJSONSchema(def)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool already registered: %s", def.Name)
	}

	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema

	log.Info().Str("tool", def.Name).Msg("Tool registered")

	return nil
}

// Get returns a tool definition by name, or nil
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tools[name]
}

// List returns all registered tool names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}

	return names
}

// Describe renders a prompt-ready summary of every registered tool
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := ""
	for name, def := range r.tools {
		out += fmt.Sprintf("- %s: %s", name, def.Description)
		for _, p := range def.Parameters {
			req := ""
			if p.Required {
				req = ", required"
			}
			out += fmt.Sprintf("\n    %s (%s%s): %s", p.Name, p.Type, req, p.Description)
		}
		out += "\n"
	}
	return out
}

// Execute runs a tool and always returns an observation string. Unknown
// tools, invalid arguments, handler errors, timeouts and panics all become
// observations, never faults.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}, execCtx *ExecutionContext) string {
	startTime := time.Now()

	r.mu.RLock()
	def := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if def == nil {
		log.Warn().Str("tool", name).Msg("Unknown tool requested")
		observability.RecordToolExecution(name, "unknown", time.Since(startTime))
		return fmt.Sprintf("unknown tool: %s", name)
	}

	if err := validateArgs(schema, args); err != nil {
		log.Warn().Str("tool", name).Err(err).Msg("Argument validation failed")
		observability.RecordToolExecution(name, "invalid_args", time.Since(startTime))
		return fmt.Sprintf("tool error: invalid arguments for %s: %v", name, err)
	}

	timeout := defaultTimeout
	if execCtx != nil && execCtx.Timeout > 0 {
		timeout = execCtx.Timeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Debug().Str("tool", name).Msg("Executing tool")

	result, err := runHandler(timeoutCtx, def.Handler, args, execCtx)
	duration := time.Since(startTime)

	if err != nil {
		log.Warn().Str("tool", name).Dur("duration", duration).Err(err).Msg("Tool execution failed")
		observability.RecordToolExecution(name, "error", duration)
		return fmt.Sprintf("tool error: %v", err)
	}

	observation, truncated := truncateObservation(result)

	log.Debug().
		Str("tool", name).
		Dur("duration", duration).
		Bool("truncated", truncated).
		Msg("Tool execution completed")
	observability.RecordToolExecution(name, "ok", duration)

	return observation
}

// runHandler invokes the handler in its own goroutine so a blocking handler
// cannot outlive the timeout, and recovers panics into errors.
func runHandler(ctx context.Context, handler Handler, args map[string]interface{}, execCtx *ExecutionContext) (string, error) {
	type handlerResult struct {
		text string
		err  error
	}

	resultChan := make(chan handlerResult, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				resultChan <- handlerResult{err: fmt.Errorf("tool handler panicked: %v", rec)}
			}
		}()

		text, err := handler(ctx, args, execCtx)
		resultChan <- handlerResult{text: text, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.text, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("tool execution timeout: %w", ctx.Err())
	}
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
	}

	return nil
}

// generateJSONSchema generates a JSON Schema from tool parameters
func generateJSONSchema(def Definition) (*gojsonschema.Schema, error) {
	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           make(map[string]interface{}),
	}

	properties := schemaMap["properties"].(map[string]interface{})
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}

		if param.Default != nil {
			paramSchema["default"] = param.Default
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	if len(required) > 0 {
		schemaMap["required"] = required
	}

	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	return gojsonschema.NewSchema(schemaLoader)
}

// validateArgs validates arguments against a JSON Schema
func validateArgs(schema *gojsonschema.Schema, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	argsLoader := gojsonschema.NewGoLoader(args)
	result, err := schema.Validate(argsLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		errs := []string{}
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}

	return nil
}

// truncateObservation truncates oversized output with a marker
func truncateObservation(s string) (string, bool) {
	if len(s) <= maxObservationSize {
		return s, false
	}

	log.Warn().
		Int("original", len(s)).
		Int("truncated", maxObservationSize).
		Msg("Observation truncated")

	return s[:maxObservationSize] + "\n... [output truncated]", true
}
