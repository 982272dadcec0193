package chatroom

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chatlings/internal/database"
	"github.com/chatlings/pkg/models"
)

var (
	ErrNotFound  = errors.New("participation not found")
	ErrDuplicate = errors.New("user already participated in chatroom")
)

// Store persists participation records, unique per (user, chatroom)
type Store interface {
	Create(ctx context.Context, rec *models.ParticipationRecord) error
	Get(ctx context.Context, userID string, chatroomID int64) (*models.ParticipationRecord, error)
	// RecentAttitudes returns up to n of the user's latest attitudes, oldest first
	RecentAttitudes(ctx context.Context, userID string, n int) ([]models.AttitudeProfile, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.ParticipationRecord, error)
}

type participationKey struct {
	userID     string
	chatroomID int64
}

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[participationKey]*models.ParticipationRecord
	nextID  int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[participationKey]*models.ParticipationRecord)}
}

func (s *InMemoryStore) Create(ctx context.Context, rec *models.ParticipationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := participationKey{rec.UserID, rec.ChatroomID}
	if _, ok := s.records[k]; ok {
		return ErrDuplicate
	}
	s.nextID++
	rec.ID = s.nextID
	if rec.ParticipatedAt.IsZero() {
		rec.ParticipatedAt = time.Now()
	}
	cp := *rec
	s.records[k] = &cp
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, userID string, chatroomID int64) (*models.ParticipationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[participationKey{userID, chatroomID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ParticipationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ParticipationRecord, 0)
	for k, rec := range s.records {
		if k.userID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ParticipatedAt.Equal(out[j].ParticipatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ParticipatedAt.After(out[j].ParticipatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) RecentAttitudes(ctx context.Context, userID string, n int) ([]models.AttitudeProfile, error) {
	recent, err := s.ListByUser(ctx, userID, n)
	if err != nil {
		return nil, err
	}
	return oldestFirst(recent), nil
}

func oldestFirst(newestFirst []*models.ParticipationRecord) []models.AttitudeProfile {
	out := make([]models.AttitudeProfile, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i].Attitude)
	}
	return out
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

const participationColumns = `id, user_id, chatroom_id, creature_id, enthusiasm, criticism, humor, glow_earned, breakdown, participated_at`

func (s *PostgresStore) Create(ctx context.Context, rec *models.ParticipationRecord) error {
	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal breakdown: %w", err)
	}
	if rec.ParticipatedAt.IsZero() {
		rec.ParticipatedAt = time.Now()
	}
	err = s.db.QueryRowContext(ctx, `
        INSERT INTO chatroom_participations (user_id, chatroom_id, creature_id, enthusiasm, criticism, humor, glow_earned, breakdown, participated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id
    `, rec.UserID, rec.ChatroomID, rec.RosterMemberID, rec.Attitude.Enthusiasm, rec.Attitude.Criticism, rec.Attitude.Humor,
		rec.RewardEarned, breakdown, rec.ParticipatedAt).Scan(&rec.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string, chatroomID int64) (*models.ParticipationRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+participationColumns+` FROM chatroom_participations WHERE user_id=$1 AND chatroom_id=$2`, userID, chatroomID)
	return scanParticipation(row)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.ParticipationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT `+participationColumns+` FROM chatroom_participations
        WHERE user_id=$1 ORDER BY participated_at DESC, id DESC LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*models.ParticipationRecord, 0)
	for rows.Next() {
		rec, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecentAttitudes(ctx context.Context, userID string, n int) ([]models.AttitudeProfile, error) {
	recent, err := s.ListByUser(ctx, userID, n)
	if err != nil {
		return nil, err
	}
	return oldestFirst(recent), nil
}

func scanParticipation(scanner interface{ Scan(dest ...any) error }) (*models.ParticipationRecord, error) {
	var rec models.ParticipationRecord
	var breakdown []byte
	err := scanner.Scan(&rec.ID, &rec.UserID, &rec.ChatroomID, &rec.RosterMemberID,
		&rec.Attitude.Enthusiasm, &rec.Attitude.Criticism, &rec.Attitude.Humor, &rec.RewardEarned, &breakdown, &rec.ParticipatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &rec.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
	}
	return &rec, nil
}
