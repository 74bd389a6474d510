package agents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 8192

// ClaudeConfig — конфигурация ClaudeCompleter.
type ClaudeConfig struct {
	// APIKey — ключ Anthropic API. Если пусто, берётся из ANTHROPIC_API_KEY.
	APIKey string

	// Model — модель по умолчанию.
	Model string

	// MaxTokens — ограничение длины ответа по умолчанию.
	MaxTokens int64

	// BaseURL — адрес API (для прокси и тестов).
	BaseURL string
}

// ClaudeCompleter — бэкенд на Anthropic Messages API.
type ClaudeCompleter struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewClaudeCompleter создаёт ClaudeCompleter.
func NewClaudeCompleter(cfg ClaudeConfig) (*ClaudeCompleter, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable is not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &ClaudeCompleter{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Model возвращает модель по умолчанию.
func (c *ClaudeCompleter) Model() string {
	return string(c.model)
}

// Complete отправляет один запрос Messages API и собирает текстовые блоки ответа.
func (c *ClaudeCompleter) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	model := c.model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}

	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.System},
		}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrAgentCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrCompletion, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	return &CompletionResponse{
		Text:         text.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
