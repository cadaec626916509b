package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Maestro/internal/domain"
)

// KnowledgeRepo — репозиторий базы знаний (таблица knowledge_base).
type KnowledgeRepo struct {
	pool *pgxpool.Pool
}

// NewKnowledgeRepo создаёт новый KnowledgeRepo.
func NewKnowledgeRepo(pool *pgxpool.Pool) *KnowledgeRepo {
	return &KnowledgeRepo{pool: pool}
}

const knowledgeColumns = `id, title, content, category, tags, created_at, updated_at`

// EnsureSchema создаёт таблицу и индекс полнотекстового поиска, если их нет.
func (r *KnowledgeRepo) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS knowledge_base (
			id          BIGSERIAL PRIMARY KEY,
			title       TEXT NOT NULL,
			content     TEXT NOT NULL,
			category    TEXT NOT NULL,
			tags        TEXT[] NOT NULL DEFAULT '{}',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS knowledge_base_fts_idx
			ON knowledge_base USING GIN (to_tsvector('english', title || ' ' || content));
		CREATE INDEX IF NOT EXISTS knowledge_base_category_idx
			ON knowledge_base (category);
	`
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure knowledge schema: %w", err)
	}
	return nil
}

// Search выполняет полнотекстовый поиск, сортируя по ts_rank.
// Пустой category — поиск по всем категориям.
func (r *KnowledgeRepo) Search(ctx context.Context, query, category string, limit int) ([]domain.KnowledgeItem, error) {
	sql := `
		SELECT ` + knowledgeColumns + `,
		       ts_rank(to_tsvector('english', title || ' ' || content),
		               plainto_tsquery('english', $1)) AS rank
		FROM knowledge_base
		WHERE to_tsvector('english', title || ' ' || content) @@ plainto_tsquery('english', $1)
	`
	args := []any{query}

	if category != "" {
		args = append(args, category)
		sql += fmt.Sprintf(" AND category = $%d", len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(" ORDER BY rank DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	defer rows.Close()

	var items []domain.KnowledgeItem
	for rows.Next() {
		var item domain.KnowledgeItem
		if err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.Content,
			&item.Category,
			&item.Tags,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.Rank,
		); err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ByCategory возвращает последние записи категории.
func (r *KnowledgeRepo) ByCategory(ctx context.Context, category string, limit int) ([]domain.KnowledgeItem, error) {
	query := `
		SELECT ` + knowledgeColumns + `
		FROM knowledge_base
		WHERE category = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("list knowledge by category: %w", err)
	}
	defer rows.Close()

	var items []domain.KnowledgeItem
	for rows.Next() {
		item, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// GetByID возвращает запись по ID.
func (r *KnowledgeRepo) GetByID(ctx context.Context, id int64) (*domain.KnowledgeItem, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge_base WHERE id = $1`

	item, err := scanKnowledge(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Categories возвращает все категории по алфавиту.
func (r *KnowledgeRepo) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT category FROM knowledge_base ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Insert сохраняет запись и возвращает её ID.
func (r *KnowledgeRepo) Insert(ctx context.Context, item *domain.KnowledgeItem) (int64, error) {
	if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Content) == "" {
		return 0, fmt.Errorf("%w: title and content are required", ErrInvalidInput)
	}
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
		INSERT INTO knowledge_base (title, content, category, tags)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query, item.Title, item.Content, item.Category, tags).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert knowledge: %w", err)
	}
	return item.ID, nil
}

// Ping проверяет соединение с БД.
func (r *KnowledgeRepo) Ping(ctx context.Context) error {
	var one int
	if err := r.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping knowledge db: %w", err)
	}
	return nil
}

func scanKnowledge(row pgx.Row) (domain.KnowledgeItem, error) {
	var item domain.KnowledgeItem
	err := row.Scan(
		&item.ID,
		&item.Title,
		&item.Content,
		&item.Category,
		&item.Tags,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return item, fmt.Errorf("scan knowledge: %w", err)
	}
	return item, err
}
