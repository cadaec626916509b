package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Значения по умолчанию для генерации.
const (
	DefaultModel       = anthropic.ModelClaudeSonnet4_20250514
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

// Message — сообщение диалога.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest — запрос генерации текста.
type CompletionRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Completer генерирует текст по диалогу.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// AnthropicConfig — настройки клиента Anthropic.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int

	// Temperature — nil означает значение сервиса по умолчанию;
	// 0 допустим и передаётся как есть.
	Temperature *float64
}

// temperatureOr возвращает настроенную температуру или def.
func (c AnthropicConfig) temperatureOr(def float64) float64 {
	if c.Temperature == nil {
		return def
	}
	return *c.Temperature
}

// AnthropicCompleter — Completer поверх Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicCompleter создаёт клиента. Пустой API ключ — ErrNotConfigured.
func NewAnthropicCompleter(cfg AnthropicConfig) (*AnthropicCompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic api key is required", ErrNotConfigured)
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	return &AnthropicCompleter{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
	}, nil
}

// Complete отправляет диалог в Messages API и склеивает текстовые блоки ответа.
func (c *AnthropicCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, m := range req.Messages {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(req.MaxTokens),
		Messages:    messages,
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}
	return sb.String(), nil
}
