package provider

import (
	"context"
	"fmt"
)

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	id     string
	model  string
	apiKey string
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(id, model, apiKey string) *GeminiProvider {
	return &GeminiProvider{
		id:     id,
		model:  model,
		apiKey: apiKey,
	}
}

// Name returns the configured descriptor ID
func (p *GeminiProvider) Name() string {
	return p.id
}

// Kind returns the backend type
func (p *GeminiProvider) Kind() string {
	return "gemini"
}

// Generate produces a completion for a single prompt
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.Chat(ctx, []Message{{Role: "user", Content: prompt}})
}

// Chat produces a completion for a conversation history
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	// Gemini integration is not available yet in this provider.
	return "", fmt.Errorf("gemini provider not yet implemented - use anthropic or openai")
}
