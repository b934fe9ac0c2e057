package react

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridianbi/meridian/internal/observability"
	"github.com/meridianbi/meridian/internal/tracing"
	"github.com/meridianbi/meridian/pkg/checkpoint"
	"github.com/meridianbi/meridian/pkg/provider"
	"github.com/meridianbi/meridian/pkg/runqueue"
	"github.com/meridianbi/meridian/pkg/tool"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// Executor drives the reason/act/observe loop. It is single-threaded per
// run: THINK and ACT strictly alternate, with at most one in-flight LLM or
// tool call per loop instance.
type Executor struct {
	selector *provider.Selector
	registry *tool.Registry
	store    checkpoint.Store
	queue    *runqueue.Queue
	cfg      Config
}

// ExecutorOption customizes an Executor
type ExecutorOption func(*Executor)

// WithCheckpoints enables durable mode backed by the given store
func WithCheckpoints(store checkpoint.Store) ExecutorOption {
	return func(e *Executor) { e.store = store }
}

// WithQueue serializes runs per thread id through the given queue
func WithQueue(q *runqueue.Queue) ExecutorOption {
	return func(e *Executor) { e.queue = q }
}

// WithConfig overrides the default loop configuration
func WithConfig(cfg Config) ExecutorOption {
	return func(e *Executor) { e.cfg = cfg }
}

// NewExecutor creates an Executor over a provider selector and tool registry
func NewExecutor(selector *provider.Selector, registry *tool.Registry, opts ...ExecutorOption) *Executor {
	observability.EnsureRegistered()

	e := &Executor{
		selector: selector,
		registry: registry,
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one task to completion and always returns a well-formed
// result. Runs sharing a thread id are serialized; unrelated threads
// proceed in parallel.
func (e *Executor) Run(ctx context.Context, params RunParams) RunResult {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = tracing.NewRunContext(ctx)
	if params.ThreadID != "" {
		ctx = tracing.WithThreadID(ctx, params.ThreadID)
	}

	if e.queue != nil && params.ThreadID != "" {
		value, err := e.queue.Enqueue(ctx, params.ThreadID, func(taskCtx context.Context) (interface{}, error) {
			return e.execute(taskCtx, params), nil
		})
		if err != nil {
			return RunResult{FinalResponse: err.Error(), Status: StatusError}
		}
		return value.(RunResult)
	}

	return e.execute(ctx, params)
}

// execute runs the loop with panic recovery at the boundary
func (e *Executor) execute(ctx context.Context, params RunParams) (result RunResult) {
	ctx, span := tracing.StartSpan(
		ctx,
		"meridian.react",
		"react.run",
		attribute.String("thread_id", params.ThreadID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("Run panicked")
			result = RunResult{
				FinalResponse: fmt.Sprintf("internal error: %v", rec),
				Status:        StatusError,
			}
		}
		observability.RecordRun(result.Status, result.IterationCount)
		span.SetAttributes(
			attribute.String("status", result.Status),
			attribute.Int("iterations", result.IterationCount),
		)
	}()

	maxIterations := e.cfg.MaxIterations
	if params.MaxIterations > 0 {
		maxIterations = params.MaxIterations
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	state := e.loadState(ctx, params)

	logger.Info().
		Str("goal", params.Goal).
		Int("maxIterations", maxIterations).
		Int("resumedTurns", len(state.Turns)).
		Msg("Run started")

	systemPrompt := e.buildSystemPrompt(params)

	for {
		state.Iteration++

		outcome := e.think(ctx, systemPrompt, params.Goal, state)
		if !outcome.OK() {
			return e.finishError(ctx, state, outcome)
		}

		raw := outcome.Text
		action, ok := ParseAction(raw)
		if !ok {
			// Malformed output is the model answering in prose
			logger.Debug().Int("iteration", state.Iteration).Msg("Unstructured output, treating as final answer")
			return e.finish(ctx, state, raw, raw)
		}

		if action.Action == FinalAnswerAction {
			answer := action.Answer
			if answer == "" {
				answer = raw
			}
			return e.finish(ctx, state, raw, answer)
		}

		if state.Iteration >= maxIterations {
			logger.Warn().Int("iterations", state.Iteration).Msg("Iteration cap reached")
			msg := fmt.Sprintf("Reached the maximum of %d iterations before completing the task. Last requested action: %s.", maxIterations, action.Action)
			return e.finish(ctx, state, raw, msg)
		}

		observation := e.act(ctx, params, action)

		if strings.HasPrefix(observation, "tool error") {
			// Confidence is the fraction of the iteration budget remaining.
			// Below the floor, retrying rarely converges; ask for an answer.
			confidence := float64(maxIterations-state.Iteration) / float64(maxIterations)
			if confidence < e.cfg.MinRetryConfidence {
				observation += "\nThe iteration budget is nearly spent. Respond with a final_answer summarizing what is known."
			}
		}

		state.Turns = append(state.Turns,
			checkpoint.Turn{Role: "assistant", Content: raw, Timestamp: time.Now()},
			checkpoint.Turn{Role: "tool", Content: observation, Timestamp: time.Now()},
		)
		e.saveState(ctx, state, "running")
	}
}

// think performs one LLM call over the accumulated transcript
func (e *Executor) think(ctx context.Context, systemPrompt, goal string, state *checkpoint.Checkpoint) provider.Outcome {
	ctx, span := tracing.StartSpan(
		ctx,
		"meridian.react",
		"react.think",
		attribute.Int("iteration", state.Iteration),
	)
	defer span.End()

	messages := []provider.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: goal},
	}
	for _, turn := range state.Turns {
		switch turn.Role {
		case "assistant":
			messages = append(messages, provider.Message{Role: "assistant", Content: turn.Content})
		case "tool":
			messages = append(messages, provider.Message{Role: "user", Content: "Observation: " + turn.Content})
		}
	}

	return e.selector.Chat(ctx, messages)
}

// act executes the requested tool and returns its observation
func (e *Executor) act(ctx context.Context, params RunParams, action *Action) string {
	ctx, span := tracing.StartSpan(
		ctx,
		"meridian.react",
		"react.act",
		attribute.String("tool", action.Action),
	)
	defer span.End()

	execCtx := &tool.ExecutionContext{
		ThreadID: params.ThreadID,
		Timeout:  e.cfg.ToolTimeout,
		Vars:     params.Context,
	}

	return e.registry.Execute(ctx, action.Action, action.Arguments, execCtx)
}

// buildSystemPrompt renders the instruction prompt with the tool catalog
func (e *Executor) buildSystemPrompt(params RunParams) string {
	var b strings.Builder

	b.WriteString("You are a business-intelligence analyst agent. ")
	b.WriteString("Work toward the user's goal one step at a time.\n\n")
	b.WriteString("Available tools:\n")
	b.WriteString(e.registry.Describe())
	b.WriteString("\nRespond with exactly one JSON object per turn, either:\n")
	b.WriteString(`  {"action": "<tool name>", "arguments": {...}}` + "\n")
	b.WriteString("to invoke a tool, or:\n")
	b.WriteString(`  {"action": "final_answer", "answer": "<your answer>"}` + "\n")
	b.WriteString("when the goal is accomplished.\n")

	if len(params.Context) > 0 {
		b.WriteString("\nContext:\n")
		for key, value := range params.Context {
			fmt.Fprintf(&b, "  %s: %v\n", key, value)
		}
	}

	return b.String()
}

// finish records a successful terminal state
func (e *Executor) finish(ctx context.Context, state *checkpoint.Checkpoint, raw, answer string) RunResult {
	state.Turns = append(state.Turns, checkpoint.Turn{Role: "assistant", Content: raw, Timestamp: time.Now()})
	e.saveState(ctx, state, StatusSuccess)

	runLogger := tracing.LoggerFromContext(ctx, log.Logger)
	runLogger.Info().
		Int("iterations", state.Iteration).
		Msg("Run completed")

	return RunResult{
		FinalResponse:  answer,
		Status:         StatusSuccess,
		IterationCount: state.Iteration,
	}
}

// finishError records a terminal provider failure
func (e *Executor) finishError(ctx context.Context, state *checkpoint.Checkpoint, outcome provider.Outcome) RunResult {
	var msg string
	switch outcome.Kind {
	case provider.OutcomeQuotaExhausted:
		msg = "all providers are quota-exhausted; try again after the quota reset"
	default:
		msg = fmt.Sprintf("provider call failed: %v", outcome.Err)
	}

	e.saveState(ctx, state, StatusError)

	runLogger := tracing.LoggerFromContext(ctx, log.Logger)
	runLogger.Error().
		Str("outcome", outcome.Kind.String()).
		Int("iterations", state.Iteration).
		Msg("Run failed")

	return RunResult{
		FinalResponse:  msg,
		Status:         StatusError,
		IterationCount: state.Iteration,
	}
}

// loadState resumes a durable thread or starts fresh
func (e *Executor) loadState(ctx context.Context, params RunParams) *checkpoint.Checkpoint {
	if e.store != nil && params.ThreadID != "" {
		cp, err := e.store.Load(ctx, params.ThreadID)
		if err != nil {
			loadLogger := tracing.LoggerFromContext(ctx, log.Logger)
			loadLogger.Warn().Err(err).Msg("Checkpoint load failed, starting fresh")
		} else if cp != nil {
			cp.Goal = params.Goal
			return cp
		}
	}

	return &checkpoint.Checkpoint{
		ThreadID: params.ThreadID,
		Goal:     params.Goal,
	}
}

// saveState writes through to the checkpoint store after every turn
func (e *Executor) saveState(ctx context.Context, state *checkpoint.Checkpoint, status string) {
	if e.store == nil || state.ThreadID == "" {
		return
	}

	state.Status = status
	if err := e.store.Save(ctx, state); err != nil {
		saveLogger := tracing.LoggerFromContext(ctx, log.Logger)
		saveLogger.Warn().Err(err).Msg("Checkpoint save failed")
	}
}
