package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/shaiso/Maestro/internal/service"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// Ключи конфигурации LLM и RAG.
const (
	configModel            = "model"
	configMaxTokens        = "max_tokens"
	configTemperature      = "temperature"
	configBatchConcurrency = "batch_concurrency"
)

// Deps — общие зависимости создаваемых сервисов.
type Deps struct {
	Logger  *slog.Logger
	Metrics *telemetry.Metrics

	// Knowledge — хранилище для database и rag.
	Knowledge KnowledgeStore

	// Anthropic — настройки клиента по умолчанию для llm и rag.
	Anthropic AnthropicConfig

	// Completer подменяет клиента Anthropic (тесты, локальные модели).
	Completer Completer

	// Transport — HTTP транспорт для http сервиса.
	Transport http.RoundTripper
}

type builder func(cfg map[string]any) (service.Hooks, descriptor)

// Factory создаёт сервисы по типу.
type Factory struct {
	deps     Deps
	builders map[string]builder
}

// NewFactory создаёт фабрику со всеми стандартными типами.
func NewFactory(deps Deps) *Factory {
	f := &Factory{deps: deps}
	f.builders = map[string]builder{
		TypeLLM:      f.llm,
		TypeDatabase: f.database,
		TypeRAG:      f.rag,
		TypeHTTP:     f.http,
		TypeUtility:  f.utility,
	}
	return f
}

// Supports сообщает, известен ли тип.
func (f *Factory) Supports(serviceType string) bool {
	_, ok := f.builders[serviceType]
	return ok
}

// Types возвращает известные типы в алфавитном порядке.
func (f *Factory) Types() []string {
	types := make([]string, 0, len(f.builders))
	for t := range f.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Create создаёт сервис, не запуская его.
// Неизвестный тип — ErrUnknownType.
func (f *Factory) Create(ctx context.Context, serviceType string, cfg map[string]any) (*service.Service, error) {
	build, ok := f.builders[serviceType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, serviceType)
	}
	if cfg == nil {
		cfg = make(map[string]any)
	}

	hooks, d := build(cfg)
	return newService(hooks, d, cfg, f.deps.Logger, f.deps.Metrics), nil
}

// anthropicConfig накладывает model, max_tokens и temperature из cfg на значения по умолчанию.
func (f *Factory) anthropicConfig(cfg map[string]any) AnthropicConfig {
	ac := f.deps.Anthropic
	if model := getString(cfg, configModel); model != "" {
		ac.Model = model
	}
	ac.MaxTokens = getInt(cfg, configMaxTokens, ac.MaxTokens)
	if t, ok := lookupFloat(cfg, configTemperature); ok {
		ac.Temperature = &t
	}
	return ac
}

func (f *Factory) llm(cfg map[string]any) (service.Hooks, descriptor) {
	return NewLLMHooks(LLMConfig{
		Anthropic:        f.anthropicConfig(cfg),
		Completer:        f.deps.Completer,
		BatchConcurrency: getInt(cfg, configBatchConcurrency, 0),
		Logger:           f.deps.Logger,
	}), llmDescriptor
}

func (f *Factory) database(cfg map[string]any) (service.Hooks, descriptor) {
	return NewDatabaseHooks(f.deps.Knowledge), databaseDescriptor
}

func (f *Factory) rag(cfg map[string]any) (service.Hooks, descriptor) {
	return NewRAGHooks(RAGConfig{
		Store:            f.deps.Knowledge,
		Completer:        f.deps.Completer,
		Anthropic:        f.anthropicConfig(cfg),
		FallbackKeywords: getStrings(cfg, configFallbackKeywords),
		BatchConcurrency: getInt(cfg, configBatchConcurrency, 0),
		Logger:           f.deps.Logger,
	}), ragDescriptor
}

func (f *Factory) http(cfg map[string]any) (service.Hooks, descriptor) {
	return NewHTTPHooks(f.deps.Transport), httpDescriptor
}

func (f *Factory) utility(cfg map[string]any) (service.Hooks, descriptor) {
	return NewUtilityHooks(), utilityDescriptor
}
