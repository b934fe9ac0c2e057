package tool

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() Definition {
	return Definition{
		Name:        "echo",
		Description: "Echoes the supplied text back",
		Parameters: []Parameter{
			{Name: "text", Type: "string", Description: "Text to echo", Required: true},
		},
		Handler: func(ctx context.Context, args map[string]interface{}, execCtx *ExecutionContext) (string, error) {
			return args["text"].(string), nil
		},
	}
}

func TestRegistryRegister(t *testing.T) {
	t.Run("should register a valid tool", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(echoTool()))
		assert.NotNil(t, r.Get("echo"))
		assert.Contains(t, r.List(), "echo")
	})

	t.Run("should reject duplicate names", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(echoTool()))
		err := r.Register(echoTool())
		assert.ErrorContains(t, err, "already registered")
	})

	t.Run("should reject a nil handler", func(t *testing.T) {
		r := NewRegistry()
		err := r.Register(Definition{Name: "x", Description: "d"})
		assert.ErrorContains(t, err, "handler cannot be nil")
	})

	t.Run("should reject invalid parameter types", func(t *testing.T) {
		r := NewRegistry()
		def := echoTool()
		def.Parameters[0].Type = "varchar"
		err := r.Register(def)
		assert.ErrorContains(t, err, "invalid parameter type")
	})
}

func TestRegistryExecute(t *testing.T) {
	t.Run("should return the handler result as observation", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(echoTool()))

		obs := r.Execute(context.Background(), "echo", map[string]interface{}{"text": "hello"}, nil)
		assert.Equal(t, "hello", obs)
	})

	t.Run("should report unknown tools as observations", func(t *testing.T) {
		r := NewRegistry()

		obs := r.Execute(context.Background(), "nope", nil, nil)
		assert.Equal(t, "unknown tool: nope", obs)
	})

	t.Run("should report invalid arguments as observations", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(echoTool()))

		obs := r.Execute(context.Background(), "echo", map[string]interface{}{}, nil)
		assert.Contains(t, obs, "invalid arguments")
	})

	t.Run("should absorb handler errors into observations", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Definition{
			Name:        "fails",
			Description: "Always fails",
			Handler: func(ctx context.Context, args map[string]interface{}, execCtx *ExecutionContext) (string, error) {
				return "", fmt.Errorf("connection refused")
			},
		}))

		obs := r.Execute(context.Background(), "fails", nil, nil)
		assert.Equal(t, "tool error: connection refused", obs)
	})

	t.Run("should recover handler panics into observations", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Definition{
			Name:        "panics",
			Description: "Always panics",
			Handler: func(ctx context.Context, args map[string]interface{}, execCtx *ExecutionContext) (string, error) {
				panic("boom")
			},
		}))

		obs := r.Execute(context.Background(), "panics", nil, nil)
		assert.Contains(t, obs, "tool error")
		assert.Contains(t, obs, "boom")
	})

	t.Run("should enforce the execution timeout", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Definition{
			Name:        "slow",
			Description: "Sleeps past the timeout",
			Handler: func(ctx context.Context, args map[string]interface{}, execCtx *ExecutionContext) (string, error) {
				select {
				case <-time.After(5 * time.Second):
					return "done", nil
				case <-ctx.Done():
					return "", ctx.Err()
				}
			},
		}))

		execCtx := &ExecutionContext{Timeout: 50 * time.Millisecond}
		obs := r.Execute(context.Background(), "slow", nil, execCtx)
		assert.Contains(t, obs, "timeout")
	})

	t.Run("should truncate oversized output with a marker", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(Definition{
			Name:        "big",
			Description: "Produces a large result",
			Handler: func(ctx context.Context, args map[string]interface{}, execCtx *ExecutionContext) (string, error) {
				return strings.Repeat("x", maxObservationSize+100), nil
			},
		}))

		obs := r.Execute(context.Background(), "big", nil, nil)
		assert.True(t, strings.HasSuffix(obs, "... [output truncated]"))
		assert.Less(t, len(obs), maxObservationSize+100)
	})
}

func TestRegistryDescribe(t *testing.T) {
	t.Run("should include names, types and descriptions", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register(echoTool()))

		out := r.Describe()
		assert.Contains(t, out, "echo: Echoes the supplied text back")
		assert.Contains(t, out, "text (string, required)")
	})
}
