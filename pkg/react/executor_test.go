package react

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/meridianbi/meridian/internal/config"
	"github.com/meridianbi/meridian/pkg/checkpoint"
	"github.com/meridianbi/meridian/pkg/provider"
	"github.com/meridianbi/meridian/pkg/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider replays canned responses; fn sees the chat transcript
type scriptedProvider struct {
	id    string
	calls int
	fn    func(call int, messages []provider.Message) (string, error)
}

func (s *scriptedProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return s.Chat(ctx, []provider.Message{{Role: "user", Content: prompt}})
}

func (s *scriptedProvider) Chat(ctx context.Context, messages []provider.Message) (string, error) {
	s.calls++
	return s.fn(s.calls, messages)
}

func (s *scriptedProvider) Name() string { return s.id }
func (s *scriptedProvider) Kind() string { return "scripted" }

func selectorFor(t *testing.T, p provider.Provider) *provider.Selector {
	t.Helper()
	quota := provider.NewQuotaTracker([]config.ProviderConfig{
		{ID: p.Name(), Provider: "anthropic", DailyLimit: 0},
	})
	selector, err := provider.NewSelector([]provider.Provider{p}, quota)
	require.NoError(t, err)
	return selector
}

func registryWithEcho(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()
	require.NoError(t, r.Register(tool.Definition{
		Name:        "run_query",
		Description: "Runs a SQL query",
		Parameters: []tool.Parameter{
			{Name: "sql", Type: "string", Description: "SQL text", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}, execCtx *tool.ExecutionContext) (string, error) {
			return "rows: 3", nil
		},
	}))
	return r
}

func TestExecutorRun(t *testing.T) {
	t.Run("should terminate with a final answer", func(t *testing.T) {
		p := &scriptedProvider{id: "p", fn: func(call int, _ []provider.Message) (string, error) {
			if call == 1 {
				return `{"action": "run_query", "arguments": {"sql": "SELECT 1"}}`, nil
			}
			return `{"action": "final_answer", "answer": "done"}`, nil
		}}

		e := NewExecutor(selectorFor(t, p), registryWithEcho(t))
		result := e.Run(context.Background(), RunParams{Goal: "count rows"})

		assert.Equal(t, StatusSuccess, result.Status)
		assert.Equal(t, "done", result.FinalResponse)
		assert.Equal(t, 2, result.IterationCount)
	})

	t.Run("should append the observation before the next think", func(t *testing.T) {
		var secondCallSawObservation bool
		p := &scriptedProvider{id: "p", fn: func(call int, messages []provider.Message) (string, error) {
			if call == 1 {
				return `{"action": "run_query", "arguments": {"sql": "SELECT 1"}}`, nil
			}
			for _, m := range messages {
				if strings.Contains(m.Content, "Observation: rows: 3") {
					secondCallSawObservation = true
				}
			}
			return `{"action": "final_answer", "answer": "3 rows"}`, nil
		}}

		e := NewExecutor(selectorFor(t, p), registryWithEcho(t))
		result := e.Run(context.Background(), RunParams{Goal: "count rows"})

		assert.Equal(t, StatusSuccess, result.Status)
		assert.True(t, secondCallSawObservation)
	})

	t.Run("should terminate at the iteration cap as success", func(t *testing.T) {
		// The model always requests another tool call
		p := &scriptedProvider{id: "p", fn: func(int, []provider.Message) (string, error) {
			return `{"action": "run_query", "arguments": {"sql": "SELECT 1"}}`, nil
		}}

		e := NewExecutor(selectorFor(t, p), registryWithEcho(t))
		result := e.Run(context.Background(), RunParams{Goal: "classify dataset", MaxIterations: 5})

		assert.Equal(t, StatusSuccess, result.Status)
		assert.Equal(t, 5, result.IterationCount)
		assert.Contains(t, result.FinalResponse, "maximum of 5 iterations")
	})

	t.Run("should treat malformed output as the final answer", func(t *testing.T) {
		p := &scriptedProvider{id: "p", fn: func(int, []provider.Message) (string, error) {
			return "The dataset looks healthy overall.", nil
		}}

		e := NewExecutor(selectorFor(t, p), registryWithEcho(t))
		result := e.Run(context.Background(), RunParams{Goal: "assess"})

		assert.Equal(t, StatusSuccess, result.Status)
		assert.Equal(t, "The dataset looks healthy overall.", result.FinalResponse)
		assert.Equal(t, 1, result.IterationCount)
	})

	t.Run("unknown tools become observations and the loop continues", func(t *testing.T) {
		var sawUnknownObservation bool
		p := &scriptedProvider{id: "p", fn: func(call int, messages []provider.Message) (string, error) {
			if call == 1 {
				return `{"action": "no_such_tool", "arguments": {}}`, nil
			}
			for _, m := range messages {
				if strings.Contains(m.Content, "unknown tool: no_such_tool") {
					sawUnknownObservation = true
				}
			}
			return `{"action": "final_answer", "answer": "ok"}`, nil
		}}

		e := NewExecutor(selectorFor(t, p), registryWithEcho(t))
		result := e.Run(context.Background(), RunParams{Goal: "x"})

		assert.Equal(t, StatusSuccess, result.Status)
		assert.True(t, sawUnknownObservation)
	})

	t.Run("should report quota exhaustion as an error result", func(t *testing.T) {
		p := &scriptedProvider{id: "p", fn: func(int, []provider.Message) (string, error) {
			return "never reached", nil
		}}
		quota := provider.NewQuotaTracker([]config.ProviderConfig{
			{ID: "p", Provider: "anthropic", DailyLimit: 1},
		})
		quota.RecordUse("p")
		selector, err := provider.NewSelector([]provider.Provider{p}, quota)
		require.NoError(t, err)

		e := NewExecutor(selector, registryWithEcho(t))
		result := e.Run(context.Background(), RunParams{Goal: "x"})

		assert.Equal(t, StatusError, result.Status)
		assert.Contains(t, result.FinalResponse, "quota-exhausted")
	})

	t.Run("should absorb panics at the run boundary", func(t *testing.T) {
		p := &scriptedProvider{id: "p", fn: func(int, []provider.Message) (string, error) {
			panic("model client blew up")
		}}

		e := NewExecutor(selectorFor(t, p), registryWithEcho(t))
		result := e.Run(context.Background(), RunParams{Goal: "x"})

		assert.Equal(t, StatusError, result.Status)
		assert.Contains(t, result.FinalResponse, "model client blew up")
	})
}

func TestExecutorDurableMode(t *testing.T) {
	t.Run("should write through after every turn", func(t *testing.T) {
		store := checkpoint.NewMemoryStore()
		p := &scriptedProvider{id: "p", fn: func(call int, _ []provider.Message) (string, error) {
			if call == 1 {
				return `{"action": "run_query", "arguments": {"sql": "SELECT 1"}}`, nil
			}
			return `{"action": "final_answer", "answer": "done"}`, nil
		}}

		e := NewExecutor(selectorFor(t, p), registryWithEcho(t), WithCheckpoints(store))
		result := e.Run(context.Background(), RunParams{Goal: "count", ThreadID: "chat-1-dash-2"})
		require.Equal(t, StatusSuccess, result.Status)

		cp, err := store.Load(context.Background(), "chat-1-dash-2")
		require.NoError(t, err)
		require.NotNil(t, cp)
		assert.Equal(t, StatusSuccess, cp.Status)
		assert.Equal(t, 2, cp.Iteration)
		// tool action turn, observation turn, final answer turn
		assert.Len(t, cp.Turns, 3)
	})

	t.Run("should resume the transcript from the store", func(t *testing.T) {
		store := checkpoint.NewMemoryStore()
		require.NoError(t, store.Save(context.Background(), &checkpoint.Checkpoint{
			ThreadID:  "resumed",
			Goal:      "count",
			Iteration: 1,
			Turns: []checkpoint.Turn{
				{Role: "assistant", Content: `{"action": "run_query", "arguments": {"sql": "SELECT 1"}}`},
				{Role: "tool", Content: "rows: 3"},
			},
		}))

		var sawResumedObservation bool
		p := &scriptedProvider{id: "p", fn: func(call int, messages []provider.Message) (string, error) {
			for _, m := range messages {
				if strings.Contains(m.Content, "Observation: rows: 3") {
					sawResumedObservation = true
				}
			}
			return `{"action": "final_answer", "answer": "3 rows"}`, nil
		}}

		e := NewExecutor(selectorFor(t, p), registryWithEcho(t), WithCheckpoints(store))
		result := e.Run(context.Background(), RunParams{Goal: "count", ThreadID: "resumed"})

		assert.Equal(t, StatusSuccess, result.Status)
		assert.True(t, sawResumedObservation)
		// Resumed iteration counter continues from the stored value
		assert.Equal(t, 2, result.IterationCount)
	})
}

func TestExecutorFailover(t *testing.T) {
	t.Run("a rate-limited primary fails over mid-run", func(t *testing.T) {
		primary := &scriptedProvider{id: "primary", fn: func(int, []provider.Message) (string, error) {
			return "", fmt.Errorf("429 rate limit exceeded")
		}}
		secondary := &scriptedProvider{id: "secondary", fn: func(int, []provider.Message) (string, error) {
			return `{"action": "final_answer", "answer": "from secondary"}`, nil
		}}

		quota := provider.NewQuotaTracker([]config.ProviderConfig{
			{ID: "primary", Provider: "anthropic"},
			{ID: "secondary", Provider: "openai"},
		})
		selector, err := provider.NewSelector([]provider.Provider{primary, secondary}, quota)
		require.NoError(t, err)

		e := NewExecutor(selector, registryWithEcho(t))
		result := e.Run(context.Background(), RunParams{Goal: "x"})

		assert.Equal(t, StatusSuccess, result.Status)
		assert.Equal(t, "from secondary", result.FinalResponse)
		assert.True(t, quota.Exhausted("primary"))
	})
}
