package provider

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/meridianbi/meridian/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider is a scriptable Provider for selector tests
type fakeProvider struct {
	id    string
	calls int
	fn    func(call int) (string, error)
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.fn(f.calls)
}

func (f *fakeProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return f.Generate(ctx, "")
}

func (f *fakeProvider) Name() string { return f.id }
func (f *fakeProvider) Kind() string { return "fake" }

func succeeding(id, text string) *fakeProvider {
	return &fakeProvider{id: id, fn: func(int) (string, error) { return text, nil }}
}

func failing(id string, err error) *fakeProvider {
	return &fakeProvider{id: id, fn: func(int) (string, error) { return "", err }}
}

func trackerFor(providers []Provider, limits map[string]int) *QuotaTracker {
	descriptors := []config.ProviderConfig{}
	for _, p := range providers {
		descriptors = append(descriptors, config.ProviderConfig{
			ID:         p.Name(),
			Provider:   "anthropic",
			DailyLimit: limits[p.Name()],
		})
	}
	return NewQuotaTracker(descriptors)
}

func TestSelectorCall(t *testing.T) {
	t.Run("should select the secondary when the primary is exhausted", func(t *testing.T) {
		// A: limit=1 used=1 exhausted with reset_at in the future,
		// B: limit=5 used=0, C: unlimited.
		a := succeeding("a", "from-a")
		b := succeeding("b", "from-b")
		c := succeeding("c", "from-c")
		providers := []Provider{a, b, c}

		quota := trackerFor(providers, map[string]int{"a": 1, "b": 5, "c": 0})
		quota.RecordUse("a")
		quota.MarkExhausted("a", time.Hour)

		selector, err := NewSelector(providers, quota)
		require.NoError(t, err)

		outcome := selector.Generate(context.Background(), "total revenue by region")
		require.True(t, outcome.OK())
		assert.Equal(t, "b", outcome.Provider)
		assert.Equal(t, "from-b", outcome.Text)
		assert.Equal(t, 0, a.calls)
	})

	t.Run("rate limit error marks the primary exhausted and routes the next call", func(t *testing.T) {
		a := failing("a", fmt.Errorf("429 rate limit exceeded"))
		b := succeeding("b", "from-b")
		providers := []Provider{a, b}

		quota := trackerFor(providers, map[string]int{})
		selector, err := NewSelector(providers, quota, WithCooldown(time.Hour))
		require.NoError(t, err)

		first := selector.Generate(context.Background(), "q1")
		require.True(t, first.OK())
		assert.Equal(t, "b", first.Provider)
		assert.True(t, quota.Exhausted("a"))

		second := selector.Generate(context.Background(), "q2")
		require.True(t, second.OK())
		assert.Equal(t, "b", second.Provider)
		// The primary is never re-probed inside its cooldown window
		assert.Equal(t, 1, a.calls)
	})

	t.Run("sticky index starts from the last successful provider", func(t *testing.T) {
		a := &fakeProvider{id: "a", fn: func(call int) (string, error) {
			if call == 1 {
				return "", fmt.Errorf("connection refused")
			}
			return "from-a", nil
		}}
		b := succeeding("b", "from-b")
		providers := []Provider{a, b}

		quota := trackerFor(providers, map[string]int{})
		selector, err := NewSelector(providers, quota)
		require.NoError(t, err)

		first := selector.Generate(context.Background(), "q1")
		require.True(t, first.OK())
		assert.Equal(t, "b", first.Provider)

		// Second call starts at b, so a is not probed again
		second := selector.Generate(context.Background(), "q2")
		require.True(t, second.OK())
		assert.Equal(t, "b", second.Provider)
		assert.Equal(t, 1, a.calls)
		assert.Equal(t, 2, b.calls)
	})

	t.Run("should report quota exhaustion when nothing is usable", func(t *testing.T) {
		a := succeeding("a", "x")
		providers := []Provider{a}

		quota := trackerFor(providers, map[string]int{"a": 1})
		quota.RecordUse("a")

		selector, err := NewSelector(providers, quota)
		require.NoError(t, err)

		outcome := selector.Generate(context.Background(), "q")
		assert.Equal(t, OutcomeQuotaExhausted, outcome.Kind)
		assert.False(t, outcome.OK())
		assert.Equal(t, 0, a.calls)
	})

	t.Run("should report a terminal error when every provider fails", func(t *testing.T) {
		a := failing("a", fmt.Errorf("boom-a"))
		b := failing("b", fmt.Errorf("boom-b"))
		providers := []Provider{a, b}

		quota := trackerFor(providers, map[string]int{})
		selector, err := NewSelector(providers, quota)
		require.NoError(t, err)

		outcome := selector.Generate(context.Background(), "q")
		assert.Equal(t, OutcomeProviderError, outcome.Kind)
		require.Error(t, outcome.Err)
		assert.Contains(t, outcome.Err.Error(), "boom-b")
	})

	t.Run("should reject empty provider lists", func(t *testing.T) {
		_, err := NewSelector(nil, NewQuotaTracker(nil))
		assert.ErrorIs(t, err, ErrNoProviders)
	})
}

func TestBuildProviders(t *testing.T) {
	t.Run("should order providers by priority", func(t *testing.T) {
		providers, err := BuildProviders([]config.ProviderConfig{
			{ID: "fallback", Provider: "openai", Model: "gpt-4-turbo", APIKey: "k", Priority: 2},
			{ID: "primary", Provider: "anthropic", Model: "claude-sonnet-4", APIKey: "k", Priority: 1},
		})
		require.NoError(t, err)
		require.Len(t, providers, 2)
		assert.Equal(t, "primary", providers[0].Name())
		assert.Equal(t, "fallback", providers[1].Name())
	})

	t.Run("should fail on empty descriptor list", func(t *testing.T) {
		_, err := BuildProviders(nil)
		assert.ErrorIs(t, err, ErrNoProviders)
	})

	t.Run("should fail on unsupported backend", func(t *testing.T) {
		_, err := BuildProviders([]config.ProviderConfig{
			{ID: "x", Provider: "cohere", APIKey: "k"},
		})
		assert.Error(t, err)
	})
}

func TestRateLimitClassification(t *testing.T) {
	t.Run("should classify rate limit errors", func(t *testing.T) {
		assert.True(t, IsRateLimitError(fmt.Errorf("429 Too Many Requests")))
		assert.True(t, IsRateLimitError(fmt.Errorf("monthly quota exceeded")))
		assert.True(t, IsRateLimitError(fmt.Errorf("RESOURCE_EXHAUSTED")))
		assert.False(t, IsRateLimitError(fmt.Errorf("invalid API key")))
		assert.False(t, IsRateLimitError(nil))
	})

	t.Run("should classify retryable errors", func(t *testing.T) {
		assert.True(t, IsRetryableError(fmt.Errorf("ECONNRESET")))
		assert.True(t, IsRetryableError(fmt.Errorf("502 bad gateway")))
		assert.True(t, IsRetryableError(fmt.Errorf("429 rate limit")))
		assert.False(t, IsRetryableError(fmt.Errorf("validation failed")))
	})
}
