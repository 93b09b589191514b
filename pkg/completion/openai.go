package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
)

type openAI struct {
	client  *openai.Client
	cfg     Config
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Client for the configured provider.
// The "none" provider yields Unavailable so the pipeline runs on its degraded paths.
func New(cfg *Config, logger *slog.Logger) (Client, error) {
	var client *openai.Client

	switch cfg.Provider {
	case ProviderNone:
		return Unavailable, nil
	case ProviderAzure:
		client = openai.NewClient(
			azure.WithEndpoint(cfg.BaseURL, cfg.APIVersion),
			azure.WithAPIKey(cfg.APIKey),
		)
	case ProviderOpenAI:
		client = openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
		)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}

	return &openAI{
		client:  client,
		cfg:     *cfg,
		timeout: cfg.TimeoutDuration(),
		logger:  logger.With("system", "completion", "provider", cfg.Provider),
	}, nil
}

func (o *openAI) Complete(ctx context.Context, req Request) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.cfg.MaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = o.cfg.Temperature
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.F(o.cfg.Model),
		Messages:    openai.F(messages),
		Temperature: openai.F(temperature),
		MaxTokens:   openai.F(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}

	o.logger.DebugContext(
		ctx, "completion finished",
		"model", o.cfg.Model,
		"duration", time.Since(start),
		"total_tokens", resp.Usage.TotalTokens,
	)
	return content, nil
}
