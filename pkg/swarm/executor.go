package swarm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/meridianbi/meridian/internal/observability"
	"github.com/meridianbi/meridian/internal/tracing"
	"github.com/meridianbi/meridian/pkg/provider"
	"github.com/meridianbi/meridian/pkg/tool"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"
)

// taskIDLength for generated task ids
const taskIDLength = 8

// Executor runs hypothesis batches. Admission is gated by a weighted
// semaphore so at most Concurrency tasks run simultaneously regardless of
// batch size; waiting tasks do not block admitted ones.
type Executor struct {
	selector *provider.Selector
	registry *tool.Registry
	cfg      Config
}

// ExecutorOption customizes an Executor
type ExecutorOption func(*Executor)

// WithConfig overrides the default swarm configuration
func WithConfig(cfg Config) ExecutorOption {
	return func(e *Executor) { e.cfg = cfg }
}

// NewExecutor creates a swarm executor over a selector and tool registry
func NewExecutor(selector *provider.Selector, registry *tool.Registry, opts ...ExecutorOption) *Executor {
	observability.EnsureRegistered()

	e := &Executor{
		selector: selector,
		registry: registry,
		cfg:      DefaultSwarmConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.Concurrency <= 0 {
		e.cfg.Concurrency = DefaultConcurrency
	}
	if e.cfg.SynthesisResultLimit <= 0 {
		e.cfg.SynthesisResultLimit = DefaultSynthesisResultLimit
	}
	return e
}

// ExecuteParallel runs every spec to resolution, then performs one synthesis
// LLM call over the combined results. Task-level failures become
// status=error entries; they never fail the batch.
func (e *Executor) ExecuteParallel(ctx context.Context, specs []TaskSpec) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartSpan(
		ctx,
		"meridian.swarm",
		"swarm.execute_parallel",
		attribute.Int("tasks", len(specs)),
		attribute.Int("concurrency", e.cfg.Concurrency),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, log.Logger)

	start := time.Now()

	tasks := make([]*AgentTask, len(specs))
	for i, spec := range specs {
		id, err := gonanoid.New(taskIDLength)
		if err != nil {
			id = fmt.Sprintf("task-%d", i)
		}
		tasks[i] = &AgentTask{
			ID:         id,
			Hypothesis: spec.Hypothesis,
			Tool:       spec.Tool,
			Args:       spec.Args,
			Status:     StatusPending,
		}
	}

	logger.Info().
		Int("tasks", len(tasks)).
		Int("concurrency", e.cfg.Concurrency).
		Msg("Swarm started")

	sem := semaphore.NewWeighted(int64(e.cfg.Concurrency))
	var wg sync.WaitGroup

	for _, task := range tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()

			taskCtx := tracing.PropagateToTask(ctx)
			if err := sem.Acquire(taskCtx, 1); err != nil {
				task.Status = StatusError
				task.Result = fmt.Sprintf("task not admitted: %v", err)
				observability.RecordSwarmTask(task.Status, 0)
				return
			}
			defer sem.Release(1)

			e.runTask(taskCtx, task)
		}()
	}

	// Barrier: synthesis only begins after every task has resolved
	wg.Wait()

	synthesis := e.synthesize(ctx, tasks)

	totalElapsed := time.Since(start).Milliseconds()

	logger.Info().
		Int("tasks", len(tasks)).
		Int("succeeded", countDone(tasks)).
		Int64("totalElapsedMs", totalElapsed).
		Msg("Swarm completed")

	return Result{
		Tasks:          tasks,
		Synthesis:      synthesis,
		TotalElapsedMs: totalElapsed,
	}
}

// runTask executes one admitted task and records its terminal state
func (e *Executor) runTask(ctx context.Context, task *AgentTask) {
	ctx, span := tracing.StartSpan(
		ctx,
		"meridian.swarm",
		"swarm.task",
		attribute.String("task_id", task.ID),
		attribute.String("tool", task.Tool),
	)
	defer span.End()

	task.Status = StatusRunning
	start := time.Now()

	execCtx := &tool.ExecutionContext{Timeout: e.cfg.TaskTimeout}
	observation := e.registry.Execute(ctx, task.Tool, task.Args, execCtx)

	task.ElapsedMs = time.Since(start).Milliseconds()
	task.Result = observation

	// Registry faults arrive as typed observation prefixes
	if strings.HasPrefix(observation, "tool error") || strings.HasPrefix(observation, "unknown tool") {
		task.Status = StatusError
	} else {
		task.Status = StatusDone
	}

	observability.RecordSwarmTask(task.Status, time.Since(start))

	taskLogger := tracing.LoggerFromContext(ctx, log.Logger)
	taskLogger.Debug().
		Str("taskId", task.ID).
		Str("status", task.Status).
		Int64("elapsedMs", task.ElapsedMs).
		Msg("Swarm task resolved")
}

// synthesize performs one LLM call combining every task's outcome. On
// failure it falls back to a templated summary instead of propagating.
func (e *Executor) synthesize(ctx context.Context, tasks []*AgentTask) string {
	prompt := e.buildSynthesisPrompt(tasks)

	outcome := e.selector.Generate(ctx, prompt)
	if outcome.OK() {
		return outcome.Text
	}

	synthLogger := tracing.LoggerFromContext(ctx, log.Logger)
	synthLogger.Warn().
		Str("outcome", outcome.Kind.String()).
		Msg("Synthesis call failed, using fallback summary")

	return fmt.Sprintf("%d of %d hypotheses succeeded", countDone(tasks), len(tasks))
}

func (e *Executor) buildSynthesisPrompt(tasks []*AgentTask) string {
	var b strings.Builder

	b.WriteString("Several hypotheses were investigated in parallel. ")
	b.WriteString("Synthesize the findings into a short answer for a business analyst.\n\n")

	for i, task := range tasks {
		result := task.Result
		if len(result) > e.cfg.SynthesisResultLimit {
			result = result[:e.cfg.SynthesisResultLimit] + "..."
		}
		fmt.Fprintf(&b, "Hypothesis %d: %s\nStatus: %s\nResult: %s\n\n", i+1, task.Hypothesis, task.Status, result)
	}

	return b.String()
}

func countDone(tasks []*AgentTask) int {
	n := 0
	for _, task := range tasks {
		if task.Status == StatusDone {
			n++
		}
	}
	return n
}
