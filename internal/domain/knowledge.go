package domain

import "time"

// KnowledgeItem — запись базы знаний.
type KnowledgeItem struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Rank — релевантность полнотекстового поиска (0 вне поиска).
	Rank float64 `json:"rank,omitempty"`
}
