package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second

	defaultTemperature = 0.7
	defaultMaxTokens   = 1000

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
// Gemini and Groq are reached through their compatibility base URLs.
type OpenAIProvider struct {
	name      string
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// OpenAIProviderConfig configures one provider in the chain
type OpenAIProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint
func NewOpenAIProvider(cfg OpenAIProviderConfig, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	)

	return &OpenAIProvider{
		name:      cfg.Name,
		client:    client,
		model:     cfg.Model,
		logger:    logger,
		debugMode: debugMode,
	}
}

// Name implements Provider
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Complete implements Provider
func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params = append(params, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}

	if p.debugMode {
		previews := make([]string, 0, len(messages))
		for _, m := range messages {
			previews = append(previews, Preview(m.Content, PromptPreviewLimit))
		}
		p.logger.Debug("llm_api_request",
			zap.String("provider", p.name),
			zap.String("model", p.model),
			zap.Int("message_count", len(params)),
			zap.Strings("message_previews", previews),
		)
	}

	req := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Messages:    params,
		Temperature: openai.Float(defaultTemperature),
		MaxTokens:   openai.Int(defaultMaxTokens),
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		if p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("provider", p.name),
				zap.String("model", p.model),
				zap.Error(err),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		return nil, classifyError(p.name, err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content

	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("provider", p.name),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", Preview(content, ResponsePreviewLimit)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return &Completion{
		Text:     content,
		Provider: p.name,
		Model:    p.model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
