package personalization

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/chatlings/internal/database"
	"github.com/chatlings/pkg/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const viewColumns = `
    id, user_id, base_conversation_id, assigned_chatlings, attitude_type, enthusiasm, criticism, humor,
    customized_data, impact, glow_impact, viewed_at`

func (s *PostgresStore) Get(ctx context.Context, userID string, baseID int64) (*models.PersonalizedConversation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+viewColumns+` FROM user_conversations WHERE user_id=$1 AND base_conversation_id=$2`, userID, baseID)
	return scanView(row)
}

func (s *PostgresStore) Create(ctx context.Context, pc *models.PersonalizedConversation) error {
	forest, err := json.Marshal(pc.CustomizedForest)
	if err != nil {
		return fmt.Errorf("marshal customized forest: %w", err)
	}
	impact, err := json.Marshal(pc.Impact)
	if err != nil {
		return fmt.Errorf("marshal impact: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
        INSERT INTO user_conversations (user_id, base_conversation_id, assigned_chatlings, attitude_type,
            enthusiasm, criticism, humor, customized_data, impact, glow_impact, viewed_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id
    `, pc.UserID, pc.BaseConversationID, pq.Array(pc.AssignedRosterIDs), string(pc.Archetype),
		pc.Attitude.Enthusiasm, pc.Attitude.Criticism, pc.Attitude.Humor, forest, impact, pc.TotalRewardDelta, pc.ViewedAt).Scan(&pc.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.PersonalizedConversation, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+viewColumns+` FROM user_conversations
        WHERE user_id=$1 ORDER BY viewed_at DESC, id DESC LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*models.PersonalizedConversation, 0)
	for rows.Next() {
		pc, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetAttitude(ctx context.Context, userID string) (*models.AttitudeProfile, error) {
	var a models.AttitudeProfile
	err := s.db.QueryRowContext(ctx, `SELECT enthusiasm, criticism, humor FROM user_chat_attitudes WHERE user_id=$1`, userID).
		Scan(&a.Enthusiasm, &a.Criticism, &a.Humor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) SetAttitude(ctx context.Context, userID string, a models.AttitudeProfile) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO user_chat_attitudes (user_id, enthusiasm, criticism, humor, updated_at)
        VALUES ($1,$2,$3,$4,now())
        ON CONFLICT (user_id) DO UPDATE
        SET enthusiasm=EXCLUDED.enthusiasm, criticism=EXCLUDED.criticism, humor=EXCLUDED.humor, updated_at=now()
    `, userID, a.Enthusiasm, a.Criticism, a.Humor)
	return err
}

func scanView(scanner interface{ Scan(dest ...any) error }) (*models.PersonalizedConversation, error) {
	var pc models.PersonalizedConversation
	var archetype string
	var forest, impact []byte
	err := scanner.Scan(&pc.ID, &pc.UserID, &pc.BaseConversationID, pq.Array(&pc.AssignedRosterIDs), &archetype,
		&pc.Attitude.Enthusiasm, &pc.Attitude.Criticism, &pc.Attitude.Humor, &forest, &impact, &pc.TotalRewardDelta, &pc.ViewedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	pc.Archetype = models.Archetype(archetype)
	if err := json.Unmarshal(forest, &pc.CustomizedForest); err != nil {
		return nil, fmt.Errorf("decode customized forest: %w", err)
	}
	if err := json.Unmarshal(impact, &pc.Impact); err != nil {
		return nil, fmt.Errorf("decode impact: %w", err)
	}
	return &pc, nil
}
