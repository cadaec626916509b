package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/runner"
	"github.com/shaiso/Maestro/internal/service"
	"github.com/shaiso/Maestro/internal/telemetry"
)

const (
	// TypeLLM — тип LLM сервиса.
	TypeLLM = "llm"

	OpGenerate      = "generate"
	OpBatchGenerate = "batch_generate"

	defaultBatchConcurrency = 5
)

var llmDescriptor = descriptor{
	Name:        "llm-service",
	Description: "Text generation through the Anthropic Messages API",
	Tags:        []string{"llm", "ai", "anthropic"},
}

// LLMConfig — конфигурация LLM сервиса.
type LLMConfig struct {
	// Anthropic — настройки клиента; используется, если Completer не задан.
	Anthropic AnthropicConfig

	// Completer — готовый клиент генерации (опционально).
	Completer Completer

	// BatchConcurrency — параллелизм batch_generate (default: 5).
	BatchConcurrency int

	Logger *slog.Logger
}

// LLMService генерирует текст.
//
// Операции:
//   - generate {prompt | messages, system, max_tokens, temperature}
//   - batch_generate {tasks: [{name, data}]} — через Task Runner
type LLMService struct {
	cfg    LLMConfig
	logger *slog.Logger
	batch  *runner.Runner

	mu        sync.RWMutex
	completer Completer
}

// NewLLMHooks создаёт hooks LLM сервиса.
func NewLLMHooks(cfg LLMConfig) *LLMService {
	if cfg.Anthropic.MaxTokens <= 0 {
		cfg.Anthropic.MaxTokens = DefaultMaxTokens
	}
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = defaultBatchConcurrency
	}

	s := &LLMService{
		cfg:    cfg,
		logger: telemetry.OrDefault(cfg.Logger).With("component", "llm"),
	}
	s.batch = runner.New(runner.Config{
		Name:           "llm-batch",
		MaxConcurrency: cfg.BatchConcurrency,
		Process:        s.processTask,
		Logger:         s.logger,
	})
	return s
}

// OnStart создаёт клиента. Без API ключа запуск невозможен.
func (s *LLMService) OnStart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Completer != nil {
		s.completer = s.cfg.Completer
		return nil
	}

	c, err := NewAnthropicCompleter(s.cfg.Anthropic)
	if err != nil {
		return err
	}
	s.completer = c
	return nil
}

// OnStop освобождает клиента.
func (s *LLMService) OnStop(ctx context.Context) error {
	s.mu.Lock()
	s.completer = nil
	s.mu.Unlock()
	return nil
}

// HealthProbe проверяет, что клиент создан. Платный запрос не выполняется.
func (s *LLMService) HealthProbe(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completer != nil, nil
}

// Handle выполняет операцию.
func (s *LLMService) Handle(ctx context.Context, op string, data map[string]any) (any, error) {
	switch op {
	case OpGenerate:
		text, err := s.generate(ctx, data)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"text":         text,
			"task_id":      uuid.New().String(),
			"completed_at": time.Now().UTC().Format(time.RFC3339),
		}, nil
	case OpBatchGenerate:
		return s.batchGenerate(ctx, data)
	default:
		return nil, service.UnknownOperation(op)
	}
}

func (s *LLMService) client() (Completer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.completer == nil {
		return nil, ErrNotStarted
	}
	return s.completer, nil
}

// generate строит запрос из prompt или messages и вызывает модель.
func (s *LLMService) generate(ctx context.Context, data map[string]any) (string, error) {
	c, err := s.client()
	if err != nil {
		return "", err
	}

	req := CompletionRequest{
		System:      getString(data, "system"),
		Messages:    parseMessages(data),
		MaxTokens:   getInt(data, "max_tokens", s.cfg.Anthropic.MaxTokens),
		Temperature: getFloat(data, "temperature", s.cfg.Anthropic.temperatureOr(DefaultTemperature)),
	}
	if len(req.Messages) == 0 {
		return "", fmt.Errorf("%w: prompt or messages is required", ErrInvalidInput)
	}

	text, err := c.Complete(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm generation failed: %w", err)
	}
	return text, nil
}

// parseMessages читает data["messages"] или оборачивает data["prompt"].
func parseMessages(data map[string]any) []Message {
	if prompt := getString(data, "prompt"); prompt != "" {
		return []Message{{Role: "user", Content: prompt}}
	}

	raw, _ := data["messages"].([]any)
	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		content := getString(m, "content")
		if content == "" {
			continue
		}
		role := getString(m, "role")
		if role == "" {
			role = "user"
		}
		messages = append(messages, Message{Role: role, Content: content})
	}
	return messages
}

// batchGenerate выполняет несколько генераций через Task Runner.
func (s *LLMService) batchGenerate(ctx context.Context, data map[string]any) (any, error) {
	raw, _ := data["tasks"].([]any)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: tasks list is required", ErrInvalidInput)
	}

	tasks := make([]*domain.Task, 0, len(raw))
	for i, item := range raw {
		entry, _ := item.(map[string]any)
		name := getString(entry, "name")
		if name == "" {
			name = "batch task " + strconv.Itoa(i+1)
		}
		taskData, _ := entry["data"].(map[string]any)
		tasks = append(tasks, domain.NewTask(strconv.Itoa(i), name, taskData))
	}

	done := s.batch.Run(ctx, tasks)

	results := make([]map[string]any, 0, len(tasks))
	successful := 0
	for _, t := range tasks {
		task := done[t.ID]
		entry := map[string]any{
			"task_id": task.ID,
			"name":    task.Name,
			"text":    task.Result,
			"error":   nil,
		}
		if task.Err != nil {
			entry["error"] = task.ErrorMessage()
		} else {
			successful++
		}
		if task.CompletedAt != nil {
			entry["completed_at"] = task.CompletedAt.UTC().Format(time.RFC3339)
		}
		results = append(results, entry)
	}

	return map[string]any{
		"results":    results,
		"total":      len(results),
		"successful": successful,
	}, nil
}

func (s *LLMService) processTask(ctx context.Context, task *domain.Task) (any, error) {
	return s.generate(ctx, task.Data)
}
