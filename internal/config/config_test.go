package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Providers = []ProviderConfig{
		{ID: "primary", Provider: "anthropic", Model: "claude-sonnet-4", APIKey: "key-a", DailyLimit: 100, Priority: 1},
		{ID: "secondary", Provider: "openai", Model: "gpt-4-turbo", APIKey: "key-b", Priority: 2},
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Engine.MaxIterations)
	assert.Equal(t, 5, cfg.Engine.SwarmConcurrency)
	assert.InDelta(t, 0.3, cfg.Engine.MinRetryConfidence, 0.0001)
	assert.Equal(t, "sqlite3", cfg.Warehouse.Driver)
	assert.False(t, cfg.Checkpoints.Enabled)
}

func TestValidate(t *testing.T) {
	t.Run("should accept valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("should require at least one provider", func(t *testing.T) {
		cfg := DefaultConfig()
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "no providers configured")
	})

	t.Run("should reject unknown provider type", func(t *testing.T) {
		cfg := validConfig()
		cfg.Providers[0].Provider = "cohere"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid provider")
	})

	t.Run("should reject duplicate provider ids", func(t *testing.T) {
		cfg := validConfig()
		cfg.Providers[1].ID = "primary"
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate")
	})

	t.Run("should require api key", func(t *testing.T) {
		cfg := validConfig()
		cfg.Providers[0].APIKey = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("should reject negative daily limit", func(t *testing.T) {
		cfg := validConfig()
		cfg.Providers[0].DailyLimit = -1
		assert.Error(t, cfg.Validate())
	})

	t.Run("should reject non-positive iteration cap", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.MaxIterations = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("should reject out-of-range retry confidence", func(t *testing.T) {
		cfg := validConfig()
		cfg.Engine.MinRetryConfidence = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("should require checkpoint dir when enabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Checkpoints.Enabled = true
		cfg.Checkpoints.Dir = ""
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "checkpoints dir")
	})
}
