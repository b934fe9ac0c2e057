package provider

import (
	"context"
	"fmt"

	"github.com/meridianbi/meridian/internal/config"
)

// Message represents a message in a conversation history
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Provider is a uniform interface around any backend language model
type Provider interface {
	// Generate produces a completion for a single prompt
	Generate(ctx context.Context, prompt string) (string, error)

	// Chat produces a completion for a conversation history
	Chat(ctx context.Context, messages []Message) (string, error)

	// Name returns the configured descriptor ID
	Name() string

	// Kind returns the backend type (anthropic, openai, gemini)
	Kind() string
}

// Factory creates providers from configuration descriptors
type Factory struct{}

// NewProvider creates a provider for a single descriptor
func (f *Factory) NewProvider(cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicProvider(cfg.ID, cfg.Model, cfg.APIKey), nil
	case "openai":
		return NewOpenAIProvider(cfg.ID, cfg.Model, cfg.APIKey), nil
	case "gemini":
		return NewGeminiProvider(cfg.ID, cfg.Model, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// BuildProviders creates the priority-ordered provider list from config.
// Order is deterministic: ascending priority, ties broken by list position.
func BuildProviders(descriptors []config.ProviderConfig) ([]Provider, error) {
	if len(descriptors) == 0 {
		return nil, ErrNoProviders
	}

	sorted := make([]config.ProviderConfig, len(descriptors))
	copy(sorted, descriptors)
	sortByPriority(sorted)

	factory := &Factory{}
	providers := make([]Provider, 0, len(sorted))
	for _, d := range sorted {
		p, err := factory.NewProvider(d)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", d.ID, err)
		}
		providers = append(providers, p)
	}

	return providers, nil
}

// sortByPriority sorts descriptors by priority (lower = tried first).
// Stable so equal priorities keep their configured order.
func sortByPriority(descriptors []config.ProviderConfig) {
	for i := 1; i < len(descriptors); i++ {
		for j := i; j > 0 && descriptors[j].Priority < descriptors[j-1].Priority; j-- {
			descriptors[j], descriptors[j-1] = descriptors[j-1], descriptors[j]
		}
	}
}
