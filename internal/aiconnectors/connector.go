package aiconnectors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/cohere"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider represents an AI provider type
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderClaude Provider = "claude"
	ProviderCohere Provider = "cohere"
	ProviderOllama Provider = "ollama"
)

// DefaultCallTimeout bounds a single provider round-trip
const DefaultCallTimeout = 60 * time.Second

var ErrEmptyResponse = errors.New("provider returned no choices")

// ConnectorOptions contains options for creating a connector
type ConnectorOptions struct {
	Provider    Provider      `json:"provider" koanf:"provider"`
	APIKey      string        `json:"api_key" koanf:"api_key"`
	BaseURL     string        `json:"base_url,omitempty" koanf:"base_url"`
	Model       string        `json:"model" koanf:"model"`
	CallTimeout time.Duration `json:"call_timeout,omitempty" koanf:"call_timeout"`
}

// Connector adapts a langchaingo model to the chat-completion shape the
// conversation generator uses
type Connector struct {
	provider Provider
	llm      llms.Model
	options  ConnectorOptions
}

// NewConnector creates a new connector for the specified provider
func NewConnector(ctx context.Context, options ConnectorOptions) (*Connector, error) {
	var model llms.Model
	var err error

	log.Debug().
		Str("provider", string(options.Provider)).
		Str("model", options.Model).
		Msg("Creating new connector")

	switch options.Provider {
	case ProviderOpenAI:
		model, err = createOpenAIModel(options)
	case ProviderGemini:
		model, err = createGeminiModel(ctx, options)
	case ProviderClaude:
		model, err = anthropic.New(anthropic.WithToken(options.APIKey), anthropic.WithModel(options.Model))
	case ProviderCohere:
		model, err = createCohereModel(options)
	case ProviderOllama:
		model, err = createOllamaModel(options)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", options.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create model for provider %s: %w", options.Provider, err)
	}

	return NewConnectorWithModel(model, options), nil
}

// NewConnectorWithModel wraps an already constructed model
func NewConnectorWithModel(model llms.Model, options ConnectorOptions) *Connector {
	if options.CallTimeout <= 0 {
		options.CallTimeout = DefaultCallTimeout
	}
	return &Connector{provider: options.Provider, llm: model, options: options}
}

func createOpenAIModel(options ConnectorOptions) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(options.Model),
		openai.WithToken(options.APIKey),
	}
	if options.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(options.BaseURL))
	}
	return openai.New(opts...)
}

func createGeminiModel(ctx context.Context, options ConnectorOptions) (llms.Model, error) {
	opts := []googleai.Option{googleai.WithAPIKey(options.APIKey)}
	if options.Model != "" {
		opts = append(opts, googleai.WithDefaultModel(options.Model))
	}
	return googleai.New(ctx, opts...)
}

func createCohereModel(options ConnectorOptions) (llms.Model, error) {
	opts := []cohere.Option{
		cohere.WithToken(options.APIKey),
		cohere.WithModel(options.Model),
	}
	if options.BaseURL != "" {
		opts = append(opts, cohere.WithBaseURL(options.BaseURL))
	}
	return cohere.New(opts...)
}

func createOllamaModel(options ConnectorOptions) (llms.Model, error) {
	if options.BaseURL == "" {
		options.BaseURL = "http://localhost:11434"
	}
	return ollama.New(ollama.WithServerURL(options.BaseURL), ollama.WithModel(options.Model))
}

// Complete sends one chat request and returns the first choice with token usage
func (c *Connector) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.options.CallTimeout)
	defer cancel()

	messages := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		messages = append(messages, llms.TextParts(role, m.Content))
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	model := req.Model
	if model == "" {
		model = c.options.Model
	}
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	start := time.Now()
	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		log.Error().Err(err).
			Str("provider", string(c.provider)).
			Str("model", model).
			Msg("Provider call failed")
		return nil, err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0]
	usage := usageFrom(choice.GenerationInfo)
	log.Debug().
		Str("provider", string(c.provider)).
		Str("model", model).
		Int("input_tokens", usage.InputTokens).
		Int("output_tokens", usage.OutputTokens).
		Dur("latency", time.Since(start)).
		Msg("Provider call complete")

	return &CompletionResponse{Text: choice.Content, Usage: usage}, nil
}

// Validate checks credentials and reachability with a tiny prompt
func (c *Connector) Validate(ctx context.Context) error {
	_, err := c.Complete(ctx, CompletionRequest{
		Messages:    []Message{{Role: RoleUser, Content: "Say 'OK' if you can read this."}},
		Temperature: 0,
		MaxTokens:   10,
	})
	if err != nil {
		return fmt.Errorf("provider %s validation failed: %w", c.provider, err)
	}
	return nil
}

// GetProvider returns the provider of this connector
func (c *Connector) GetProvider() Provider {
	return c.provider
}

// GetModel returns the configured model name
func (c *Connector) GetModel() string {
	return c.options.Model
}

// usageFrom reads token counts from GenerationInfo. OpenAI-style backends
// report PromptTokens/CompletionTokens, Anthropic reports InputTokens/OutputTokens.
func usageFrom(info map[string]any) Usage {
	var u Usage
	if info == nil {
		return u
	}
	u.InputTokens = firstInt(info, "PromptTokens", "InputTokens", "input_tokens", "prompt_tokens")
	u.OutputTokens = firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens", "completion_tokens")
	return u
}

func firstInt(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
