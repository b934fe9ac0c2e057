package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Provider for OpenAI
type OpenAIProvider struct {
	client openai.Client
	id     string
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(id, model, apiKey string) *OpenAIProvider {
	return &OpenAIProvider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		id:     id,
		model:  model,
	}
}

// Name returns the configured descriptor ID
func (p *OpenAIProvider) Name() string {
	return p.id
}

// Kind returns the backend type
func (p *OpenAIProvider) Kind() string {
	return "openai"
}

// Generate produces a completion for a single prompt
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	return p.Chat(ctx, []Message{{Role: "user", Content: prompt}})
}

// Chat produces a completion for a conversation history
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	openaiMessages := []openai.ChatCompletionMessageParamUnion{}

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			openaiMessages = append(openaiMessages, openai.SystemMessage(msg.Content))
		case "user":
			openaiMessages = append(openaiMessages, openai.UserMessage(msg.Content))
		case "assistant":
			openaiMessages = append(openaiMessages, openai.AssistantMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model),
		Messages: openaiMessages,
	}

	response, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai call failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response choices returned")
	}

	return response.Choices[0].Message.Content, nil
}
