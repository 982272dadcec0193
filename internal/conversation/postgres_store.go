package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chatlings/internal/database"
	"github.com/chatlings/pkg/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const conversationColumns = `
    id, video_id, coalesce(video_title,''), coalesce(video_category,''), conversation_data, total_comment_count,
    coalesce(model,''), input_tokens, output_tokens, generation_cost, generation_duration_ms, generated_at`

func (s *PostgresStore) Create(ctx context.Context, c *models.BaseConversation) error {
	forest, err := json.Marshal(c.Forest)
	if err != nil {
		return fmt.Errorf("marshal forest: %w", err)
	}
	if c.GeneratedAt.IsZero() {
		c.GeneratedAt = time.Now()
	}
	err = s.db.QueryRowContext(ctx, `
        INSERT INTO base_conversations (video_id, video_title, video_category, conversation_data, total_comment_count,
            model, input_tokens, output_tokens, generation_cost, generation_duration_ms, generated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id
    `, c.ContentID, c.ContentTitle, nullIfEmpty(c.ContentCategory), forest, c.TotalCommentCount,
		c.ModelIdentifier, c.InputTokens, c.OutputTokens, c.GenerationCostUnits, c.GenerationDurationMs, c.GeneratedAt).Scan(&c.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*models.BaseConversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM base_conversations WHERE id=$1`, id)
	return scanConversation(row)
}

func (s *PostgresStore) GetByContentID(ctx context.Context, contentID string) (*models.BaseConversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM base_conversations WHERE video_id=$1`, contentID)
	return scanConversation(row)
}

func (s *PostgresStore) GetLatest(ctx context.Context) (*models.BaseConversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM base_conversations ORDER BY generated_at DESC, id DESC LIMIT 1`)
	return scanConversation(row)
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*models.BaseConversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+conversationColumns+` FROM base_conversations ORDER BY generated_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*models.BaseConversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, `
        SELECT count(*), coalesce(sum(total_comment_count),0), coalesce(sum(generation_cost),0),
               coalesce(avg(generation_cost),0), coalesce(avg(generation_duration_ms),0), max(generated_at)
        FROM base_conversations
    `).Scan(&st.TotalConversations, &st.TotalComments, &st.TotalCost, &st.AvgCost, &st.AvgDurationMs, &last)
	if err != nil {
		return nil, err
	}
	if last.Valid {
		t := last.Time
		st.LastGeneratedAt = &t
	}
	return st, nil
}

func scanConversation(scanner interface{ Scan(dest ...any) error }) (*models.BaseConversation, error) {
	var c models.BaseConversation
	var raw []byte
	err := scanner.Scan(&c.ID, &c.ContentID, &c.ContentTitle, &c.ContentCategory, &raw, &c.TotalCommentCount,
		&c.ModelIdentifier, &c.InputTokens, &c.OutputTokens, &c.GenerationCostUnits, &c.GenerationDurationMs, &c.GeneratedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &c.Forest); err != nil {
			return nil, fmt.Errorf("decode conversation %d: %w", c.ID, err)
		}
	}
	if c.Forest == nil {
		c.Forest = []*models.CommentNode{}
	}
	return &c, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
