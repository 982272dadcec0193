package conversation

import (
	"context"
	"database/sql"
	"sync"

	"github.com/chatlings/pkg/models"
)

// ContentSource yields content that still needs a base conversation
type ContentSource interface {
	PendingContent(ctx context.Context, limit int) ([]models.ContentMetadata, error)
	MarkGenerated(ctx context.Context, contentID string) error
}

// InMemorySource is a ContentSource backed by a slice, newest last
type InMemorySource struct {
	mu        sync.Mutex
	items     []models.ContentMetadata
	generated map[string]bool
}

func NewInMemorySource(items ...models.ContentMetadata) *InMemorySource {
	return &InMemorySource{items: items, generated: make(map[string]bool)}
}

func (s *InMemorySource) Add(meta models.ContentMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, meta)
}

func (s *InMemorySource) PendingContent(ctx context.Context, limit int) ([]models.ContentMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ContentMetadata, 0)
	for i := len(s.items) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if !s.generated[s.items[i].ExternalID] {
			out = append(out, s.items[i])
		}
	}
	return out, nil
}

func (s *InMemorySource) MarkGenerated(ctx context.Context, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated[contentID] = true
	return nil
}

// PostgresSource reads the trending_topics table
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource { return &PostgresSource{db: db} }

func (s *PostgresSource) PendingContent(ctx context.Context, limit int) ([]models.ContentMetadata, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT video_id, title, coalesce(description,''), coalesce(category,''), coalesce(category_id,''), coalesce(thumbnail_url,'')
        FROM trending_topics
        WHERE is_active = true AND has_conversation = false AND video_id IS NOT NULL
        ORDER BY created_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.ContentMetadata, 0)
	for rows.Next() {
		var m models.ContentMetadata
		if err := rows.Scan(&m.ExternalID, &m.Title, &m.Description, &m.Category, &m.CategoryID, &m.ThumbnailURL); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresSource) MarkGenerated(ctx context.Context, contentID string) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE trending_topics SET has_conversation = true, conversation_generated_at = now()
        WHERE video_id = $1
    `, contentID)
	return err
}
