package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/service"
)

const (
	// TypeDatabase — тип сервиса базы знаний.
	TypeDatabase = "database"

	OpSearch        = "search"
	OpGetCategories = "get_categories"
	OpGetByCategory = "get_by_category"
	OpInsert        = "insert"

	defaultSearchLimit = 10
)

var databaseDescriptor = descriptor{
	Name:        "database-service",
	Description: "PostgreSQL knowledge base with full-text search",
	Tags:        []string{"database", "postgresql", "storage"},
}

// KnowledgeStore — хранилище базы знаний (реализуется repo.KnowledgeRepo).
type KnowledgeStore interface {
	Search(ctx context.Context, query, category string, limit int) ([]domain.KnowledgeItem, error)
	ByCategory(ctx context.Context, category string, limit int) ([]domain.KnowledgeItem, error)
	Categories(ctx context.Context) ([]string, error)
	Insert(ctx context.Context, item *domain.KnowledgeItem) (int64, error)
	Ping(ctx context.Context) error
}

// DatabaseService — доступ к базе знаний.
//
// Операции:
//   - search {query, category, limit=10}
//   - get_categories
//   - get_by_category {category, limit=10}
//   - insert {title, content, category, tags}
type DatabaseService struct {
	store KnowledgeStore
}

// NewDatabaseHooks создаёт hooks сервиса базы знаний.
func NewDatabaseHooks(store KnowledgeStore) *DatabaseService {
	return &DatabaseService{store: store}
}

// OnStart проверяет, что хранилище задано и доступно.
func (s *DatabaseService) OnStart(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("%w: knowledge store is required", ErrNotConfigured)
	}
	return s.store.Ping(ctx)
}

// OnStop ничего не делает: пулом соединений владеет вызывающая сторона.
func (s *DatabaseService) OnStop(ctx context.Context) error {
	return nil
}

// HealthProbe пингует БД.
func (s *DatabaseService) HealthProbe(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	if err := s.store.Ping(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Handle выполняет операцию.
func (s *DatabaseService) Handle(ctx context.Context, op string, data map[string]any) (any, error) {
	switch op {
	case OpSearch:
		items, err := s.store.Search(ctx, getString(data, "query"), getString(data, "category"),
			getInt(data, "limit", defaultSearchLimit))
		if err != nil {
			return nil, err
		}
		return map[string]any{"results": knowledgeResults(items, 0, true)}, nil

	case OpGetCategories:
		categories, err := s.store.Categories(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"categories": nonNil(categories)}, nil

	case OpGetByCategory:
		category, err := requireString(data, "category")
		if err != nil {
			return nil, err
		}
		items, err := s.store.ByCategory(ctx, category, getInt(data, "limit", defaultSearchLimit))
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"category": category,
			"results":  knowledgeResults(items, 0, false),
		}, nil

	case OpInsert:
		return s.insert(ctx, data)

	default:
		return nil, service.UnknownOperation(op)
	}
}

func (s *DatabaseService) insert(ctx context.Context, data map[string]any) (any, error) {
	title, err := requireString(data, "title")
	if err != nil {
		return nil, err
	}
	content, err := requireString(data, "content")
	if err != nil {
		return nil, err
	}

	item := &domain.KnowledgeItem{
		Title:    title,
		Content:  content,
		Category: getString(data, "category"),
		Tags:     getStrings(data, "tags"),
	}
	id, err := s.store.Insert(ctx, item)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}

// knowledgeResults преобразует записи в ответ.
// maxContent > 0 обрезает content до maxContent символов с "...".
func knowledgeResults(items []domain.KnowledgeItem, maxContent int, withCategory bool) []map[string]any {
	results := make([]map[string]any, 0, len(items))
	for _, item := range items {
		r := map[string]any{
			"id":      item.ID,
			"title":   item.Title,
			"content": truncateContent(item.Content, maxContent),
			"tags":    nonNil(item.Tags),
		}
		if withCategory {
			r["category"] = item.Category
		}
		results = append(results, r)
	}
	return results
}

func truncateContent(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
