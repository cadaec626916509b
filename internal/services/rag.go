package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/runner"
	"github.com/shaiso/Maestro/internal/service"
	"github.com/shaiso/Maestro/internal/telemetry"
)

const (
	// TypeRAG — тип RAG сервиса.
	TypeRAG = "rag"

	OpQuestion        = "question"
	OpBatchQuestions  = "batch_questions"
	OpSearchKnowledge = "search_knowledge"

	ragResultsPerQuery     = 3
	ragMaxSources          = 5
	ragSearchLimit         = 5
	ragSnippetLength       = 200
	ragDecisionTemp        = 0.2
	ragAnswerTemp          = 0.7
	processingDatabase     = "database_enhanced"
	processingDirectLLM    = "direct_llm"
	fallbackReasoning      = "decision parse failed, using keyword-based fallback"
	fallbackConfidence     = 0.5
	configFallbackKeywords = "fallback_keywords"
)

var ragDescriptor = descriptor{
	Name:         "rag-service",
	Description:  "Answers questions using the knowledge base and an LLM",
	Tags:         []string{"rag", "search", "knowledge", "ai"},
	Dependencies: []string{databaseDescriptor.Name},
}

// defaultFallbackKeywords — слова, при которых без решения модели идём в базу.
var defaultFallbackKeywords = []string{"install", "setup", "configure", "error", "how to", "feature"}

// RAGConfig — конфигурация RAG сервиса.
type RAGConfig struct {
	Store     KnowledgeStore
	Completer Completer

	// Anthropic используется, если Completer не задан.
	Anthropic AnthropicConfig

	// FallbackKeywords — ключевые слова для решения без модели.
	FallbackKeywords []string

	BatchConcurrency int
	Logger           *slog.Logger
}

// Decision — решение о поиске в базе знаний.
type Decision struct {
	NeedsDatabase bool     `json:"needs_database"`
	SearchQueries []string `json:"search_queries"`
	Reasoning     string   `json:"reasoning"`
	Confidence    float64  `json:"confidence"`
}

// Answer — ответ на вопрос.
type Answer struct {
	Question          string
	Text              string
	UsedDatabase      bool
	DecisionReasoning string
	Sources           []domain.KnowledgeItem
}

// RAGService отвечает на вопросы с опорой на базу знаний.
//
// Операции:
//   - question {question}
//   - batch_questions {questions} — через Task Runner
//   - search_knowledge {query, category, limit=5}
type RAGService struct {
	cfg    RAGConfig
	logger *slog.Logger
	batch  *runner.Runner

	mu        sync.RWMutex
	completer Completer
}

// NewRAGHooks создаёт hooks RAG сервиса.
func NewRAGHooks(cfg RAGConfig) *RAGService {
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = defaultBatchConcurrency
	}
	if len(cfg.FallbackKeywords) == 0 {
		cfg.FallbackKeywords = defaultFallbackKeywords
	}

	s := &RAGService{
		cfg:    cfg,
		logger: telemetry.OrDefault(cfg.Logger).With("component", "rag"),
	}
	s.batch = runner.New(runner.Config{
		Name:           "rag-batch",
		MaxConcurrency: cfg.BatchConcurrency,
		Process:        s.processTask,
		Logger:         s.logger,
	})
	return s
}

// OnStart требует хранилище и клиента модели.
func (s *RAGService) OnStart(ctx context.Context) error {
	if s.cfg.Store == nil {
		return fmt.Errorf("%w: knowledge store is required", ErrNotConfigured)
	}

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
func (s *RAGService) OnStop(ctx context.Context) error {
	s.mu.Lock()
	s.completer = nil
	s.mu.Unlock()
	return nil
}

// HealthProbe — клиент создан и БД отвечает.
func (s *RAGService) HealthProbe(ctx context.Context) (bool, error) {
	s.mu.RLock()
	ready := s.completer != nil
	s.mu.RUnlock()
	if !ready {
		return false, nil
	}
	if err := s.cfg.Store.Ping(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Handle выполняет операцию.
func (s *RAGService) Handle(ctx context.Context, op string, data map[string]any) (any, error) {
	switch op {
	case OpQuestion:
		question, err := requireString(data, "question")
		if err != nil {
			return nil, err
		}
		answer, err := s.Ask(ctx, question)
		if err != nil {
			return nil, err
		}
		return answerResult(answer), nil

	case OpBatchQuestions:
		return s.batchQuestions(ctx, data)

	case OpSearchKnowledge:
		return s.searchKnowledge(ctx, data)

	default:
		return nil, service.UnknownOperation(op)
	}
}

func (s *RAGService) client() (Completer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.completer == nil {
		return nil, ErrNotStarted
	}
	return s.completer, nil
}

// Ask: решение -> поиск -> генерация ответа.
func (s *RAGService) Ask(ctx context.Context, question string) (*Answer, error) {
	c, err := s.client()
	if err != nil {
		return nil, err
	}

	decision, err := s.decide(ctx, c, question)
	if err != nil {
		return nil, err
	}

	var sources []domain.KnowledgeItem
	if decision.NeedsDatabase {
		sources, err = s.fetch(ctx, decision.SearchQueries)
		if err != nil {
			return nil, err
		}
	}

	text, err := c.Complete(ctx, CompletionRequest{
		Messages:    []Message{{Role: "user", Content: answerPrompt(question, sources)}},
		MaxTokens:   s.maxTokens(),
		Temperature: s.cfg.Anthropic.temperatureOr(ragAnswerTemp),
	})
	if err != nil {
		return nil, fmt.Errorf("answer generation failed: %w", err)
	}

	s.logger.Debug("question answered",
		"used_database", decision.NeedsDatabase,
		"sources", len(sources),
	)

	return &Answer{
		Question:          question,
		Text:              text,
		UsedDatabase:      decision.NeedsDatabase,
		DecisionReasoning: decision.Reasoning,
		Sources:           sources,
	}, nil
}

func (s *RAGService) maxTokens() int {
	if s.cfg.Anthropic.MaxTokens > 0 {
		return s.cfg.Anthropic.MaxTokens
	}
	return DefaultMaxTokens
}

// decide спрашивает модель, нужен ли поиск в базе.
// Если ответ не JSON — решение по ключевым словам.
func (s *RAGService) decide(ctx context.Context, c Completer, question string) (Decision, error) {
	categories, err := s.cfg.Store.Categories(ctx)
	if err != nil {
		s.logger.Warn("failed to load categories", "error", err)
	}

	raw, err := c.Complete(ctx, CompletionRequest{
		Messages:    []Message{{Role: "user", Content: decisionPrompt(question, categories)}},
		MaxTokens:   s.maxTokens(),
		Temperature: ragDecisionTemp,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("decision generation failed: %w", err)
	}

	var d Decision
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &d); err != nil {
		s.logger.Debug("decision is not json, using keywords", "error", err)
		return s.keywordDecision(question), nil
	}
	if d.NeedsDatabase && len(d.SearchQueries) == 0 {
		d.SearchQueries = []string{question}
	}
	return d, nil
}

func (s *RAGService) keywordDecision(question string) Decision {
	lower := strings.ToLower(question)
	needs := false
	for _, kw := range s.cfg.FallbackKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			needs = true
			break
		}
	}

	d := Decision{
		NeedsDatabase: needs,
		SearchQueries: []string{},
		Reasoning:     fallbackReasoning,
		Confidence:    fallbackConfidence,
	}
	if needs {
		d.SearchQueries = []string{question}
	}
	return d
}

// fetch ищет по каждому запросу, убирает дубликаты, оставляет не больше 5.
func (s *RAGService) fetch(ctx context.Context, queries []string) ([]domain.KnowledgeItem, error) {
	seen := make(map[int64]bool)
	var sources []domain.KnowledgeItem

	for _, q := range queries {
		items, err := s.cfg.Store.Search(ctx, q, "", ragResultsPerQuery)
		if err != nil {
			return nil, fmt.Errorf("knowledge search %q: %w", q, err)
		}
		for _, item := range items {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			sources = append(sources, item)
		}
	}

	if len(sources) > ragMaxSources {
		sources = sources[:ragMaxSources]
	}
	return sources, nil
}

func (s *RAGService) batchQuestions(ctx context.Context, data map[string]any) (any, error) {
	questions := getStrings(data, "questions")
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: questions list is required", ErrInvalidInput)
	}

	tasks := make([]*domain.Task, 0, len(questions))
	for i, q := range questions {
		tasks = append(tasks, domain.NewTask(strconv.Itoa(i), "question "+strconv.Itoa(i+1),
			map[string]any{"question": q}))
	}

	done := s.batch.Run(ctx, tasks)

	responses := make([]map[string]any, 0, len(tasks))
	successful, usedDatabase := 0, 0
	for i, t := range tasks {
		task := done[t.ID]
		if task.Err != nil {
			responses = append(responses, map[string]any{
				"question": questions[i],
				"error":    task.ErrorMessage(),
			})
			continue
		}

		answer := task.Result.(*Answer)
		successful++
		if answer.UsedDatabase {
			usedDatabase++
		}
		responses = append(responses, answerResult(answer))
	}

	return map[string]any{
		"responses":            responses,
		"total":                len(responses),
		"successful":           successful,
		"database_usage_count": usedDatabase,
	}, nil
}

func (s *RAGService) processTask(ctx context.Context, task *domain.Task) (any, error) {
	return s.Ask(ctx, getString(task.Data, "question"))
}

func (s *RAGService) searchKnowledge(ctx context.Context, data map[string]any) (any, error) {
	query, err := requireString(data, "query")
	if err != nil {
		return nil, err
	}
	category := getString(data, "category")

	items, err := s.cfg.Store.Search(ctx, query, category, getInt(data, "limit", ragSearchLimit))
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"query":       query,
		"category":    category,
		"results":     knowledgeResults(items, ragSnippetLength, true),
		"total_found": len(items),
	}, nil
}

func answerResult(a *Answer) map[string]any {
	sources := make([]map[string]any, 0, len(a.Sources))
	for _, src := range a.Sources {
		sources = append(sources, map[string]any{
			"id":       src.ID,
			"title":    src.Title,
			"category": src.Category,
			"tags":     nonNil(src.Tags),
		})
	}

	processing := processingDirectLLM
	if a.UsedDatabase {
		processing = processingDatabase
	}

	return map[string]any{
		"question":           a.Question,
		"answer":             a.Text,
		"used_database":      a.UsedDatabase,
		"decision_reasoning": a.DecisionReasoning,
		"sources":            sources,
		"metadata": map[string]any{
			"source_count":    len(a.Sources),
			"processing_type": processing,
		},
	}
}

func decisionPrompt(question string, categories []string) string {
	var sb strings.Builder
	sb.WriteString("You decide whether a question needs information from an internal knowledge base.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	if len(categories) > 0 {
		sb.WriteString("Knowledge base categories:\n")
		for _, c := range categories {
			sb.WriteString("- ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(`Reply with JSON only:
{
    "needs_database": true or false,
    "search_queries": ["query 1", "query 2"],
    "reasoning": "short explanation",
    "confidence": 0.0-1.0
}

Specific questions about the documented product need the knowledge base.
General programming questions, greetings and small talk do not.`)
	return sb.String()
}

func answerPrompt(question string, sources []domain.KnowledgeItem) string {
	var sb strings.Builder
	if len(sources) == 0 {
		sb.WriteString("Answer the question below. Use general knowledge where the topic is not product specific.\n\n")
		sb.WriteString("Question: ")
		sb.WriteString(question)
		sb.WriteString("\n\nBe accurate and practical.")
		return sb.String()
	}

	sb.WriteString("Answer the question below using the reference material from the knowledge base.\n\n")
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nReference material:\n")
	for i, src := range sources {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("[")
		sb.WriteString(src.Title)
		sb.WriteString("]\n")
		sb.WriteString(src.Content)
	}
	sb.WriteString("\n\nPrefer the reference material, fill gaps with general knowledge and include concrete commands where relevant.")
	return sb.String()
}

// stripCodeFence убирает обёртку ```json ... ``` вокруг ответа модели.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
