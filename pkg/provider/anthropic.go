package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

// AnthropicProvider implements Provider for Anthropic Claude
type AnthropicProvider struct {
	client anthropic.Client
	id     string
	model  string
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(id, model, apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		id:     id,
		model:  model,
	}
}

// Name returns the configured descriptor ID
func (p *AnthropicProvider) Name() string {
	return p.id
}

// Kind returns the backend type
func (p *AnthropicProvider) Kind() string {
	return "anthropic"
}

// Generate produces a completion for a single prompt
func (p *AnthropicProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.Chat(ctx, []Message{{Role: "user", Content: prompt}})
}

// Chat produces a completion for a conversation history
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	anthropicMessages := []anthropic.MessageParam{}
	systemPrompt := ""

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			// System messages handled separately
			systemPrompt = msg.Content
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case "assistant":
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		}
	}

	reqParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		Messages:  anthropicMessages,
		MaxTokens: int64(anthropicMaxTokens),
	}

	if systemPrompt != "" {
		reqParams.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}

	response, err := p.client.Messages.New(ctx, reqParams)
	if err != nil {
		return "", fmt.Errorf("anthropic call failed: %w", err)
	}

	content := ""
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += b.Text
		}
	}

	return content, nil
}
