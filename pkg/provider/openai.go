package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements ChatProvider for OpenAI chat completions.
type OpenAIProvider struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, model string, maxTokens int) *OpenAIProvider {
	return &OpenAIProvider{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Model returns the configured model identifier.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// Chat makes a chat completions call with a single user turn.
func (p *OpenAIProvider) Chat(ctx context.Context, message string) (*ChatResult, error) {
	response, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(message),
		},
		MaxTokens: openai.Int(int64(p.maxTokens)),
	})
	if err != nil {
		return nil, &Error{Provider: p.Name(), Err: err}
	}

	if len(response.Choices) == 0 {
		return nil, &Error{Provider: p.Name(), Err: fmt.Errorf("no response choices returned")}
	}

	return &ChatResult{
		Text:             response.Choices[0].Message.Content,
		TokensPrompt:     int(response.Usage.PromptTokens),
		TokensCompletion: int(response.Usage.CompletionTokens),
	}, nil
}
