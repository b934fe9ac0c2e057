package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Meridian configuration
type Config struct {
	// Providers is the ordered LLM provider failover list
	Providers []ProviderConfig `json:"providers" mapstructure:"providers"`

	// Engine configures the task-execution engine
	Engine EngineConfig `json:"engine" mapstructure:"engine"`

	// Checkpoints configures durable loop-state persistence
	Checkpoints CheckpointConfig `json:"checkpoints" mapstructure:"checkpoints"`

	// Warehouse configures the local analytics store queried by tools
	Warehouse WarehouseConfig `json:"warehouse" mapstructure:"warehouse"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ProviderConfig represents one LLM provider descriptor
type ProviderConfig struct {
	ID         string `json:"id" mapstructure:"id"`
	Provider   string `json:"provider" mapstructure:"provider"` // anthropic, openai, gemini
	Model      string `json:"model" mapstructure:"model"`
	APIKey     string `json:"api_key" mapstructure:"api_key"`
	DailyLimit int    `json:"daily_limit" mapstructure:"daily_limit"` // 0 = unlimited
	Priority   int    `json:"priority" mapstructure:"priority"`       // lower = tried first
}

// EngineConfig configures the reasoning loop and the swarm executor
type EngineConfig struct {
	MaxIterations    int     `json:"max_iterations" mapstructure:"max_iterations"`
	SwarmConcurrency int     `json:"swarm_concurrency" mapstructure:"swarm_concurrency"`
	ToolTimeoutSec   int     `json:"tool_timeout_sec" mapstructure:"tool_timeout_sec"`
	CooldownMinutes  int     `json:"cooldown_minutes" mapstructure:"cooldown_minutes"`
	// MinRetryConfidence is the threshold below which a failed hypothesis is
	// not retried. Empirically tuned; changing it alters behavior.
	MinRetryConfidence   float64 `json:"min_retry_confidence" mapstructure:"min_retry_confidence"`
	SynthesisResultLimit int     `json:"synthesis_result_limit" mapstructure:"synthesis_result_limit"`
}

// CheckpointConfig configures loop-state persistence
type CheckpointConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Dir     string `json:"dir" mapstructure:"dir"`
}

// WarehouseConfig configures the analytics database the query tools run against
type WarehouseConfig struct {
	Driver string `json:"driver" mapstructure:"driver"`
	DSN    string `json:"dsn" mapstructure:"dsn"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Providers: []ProviderConfig{},
		Engine: EngineConfig{
			MaxIterations:        10,
			SwarmConcurrency:     5,
			ToolTimeoutSec:       30,
			CooldownMinutes:      60,
			MinRetryConfidence:   0.3,
			SynthesisResultLimit: 500,
		},
		Checkpoints: CheckpointConfig{
			Enabled: false,
		},
		Warehouse: WarehouseConfig{
			Driver: "sqlite3",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("no providers configured: at least one provider is required")
	}

	seen := map[string]bool{}
	for i, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("provider %d: ID is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("provider %s: duplicate ID", p.ID)
		}
		seen[p.ID] = true
		if p.Provider == "" {
			return fmt.Errorf("provider %s: provider type is required", p.ID)
		}
		valid := false
		for _, vp := range []string{"anthropic", "openai", "gemini"} {
			if p.Provider == vp {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("provider %s: invalid provider %s (must be: anthropic, openai, gemini)", p.ID, p.Provider)
		}
		if p.APIKey == "" {
			return fmt.Errorf("provider %s: api_key is required", p.ID)
		}
		if p.DailyLimit < 0 {
			return fmt.Errorf("provider %s: daily_limit cannot be negative", p.ID)
		}
	}

	if c.Engine.MaxIterations <= 0 {
		return fmt.Errorf("engine max_iterations must be positive")
	}
	if c.Engine.SwarmConcurrency <= 0 {
		return fmt.Errorf("engine swarm_concurrency must be positive")
	}
	if c.Engine.MinRetryConfidence < 0 || c.Engine.MinRetryConfidence > 1 {
		return fmt.Errorf("engine min_retry_confidence must be between 0 and 1")
	}

	if c.Checkpoints.Enabled && c.Checkpoints.Dir == "" {
		return fmt.Errorf("checkpoints dir is required when checkpoints are enabled")
	}

	return nil
}
