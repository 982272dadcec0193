// Package roster reads the chatlings on a user's active team.
package roster

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/chatlings/pkg/models"
)

var ErrNotFound = errors.New("roster member not found")

// ActiveLimit is the most team members returned by Active
const ActiveLimit = 10

type Store interface {
	// Active returns the team in slot order
	Active(ctx context.Context, userID string) ([]models.RosterMember, error)
	// Get returns an active member owned by userID
	Get(ctx context.Context, userID, memberID string) (*models.RosterMember, error)
}

type InMemoryStore struct {
	mu      sync.RWMutex
	members map[string][]models.RosterMember
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{members: make(map[string][]models.RosterMember)}
}

// Add appends members to the end of userID's team
func (s *InMemoryStore) Add(userID string, members ...models.RosterMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[userID] = append(s.members[userID], members...)
}

func (s *InMemoryStore) Active(ctx context.Context, userID string) ([]models.RosterMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team := s.members[userID]
	if len(team) > ActiveLimit {
		team = team[:ActiveLimit]
	}
	return append([]models.RosterMember{}, team...), nil
}

func (s *InMemoryStore) Get(ctx context.Context, userID, memberID string) (*models.RosterMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members[userID] {
		if m.ID == memberID {
			cp := m
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Active(ctx context.Context, userID string) ([]models.RosterMember, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, creature_name, coalesce(body_type,''), coalesce(role,'')
        FROM user_roster
        WHERE user_id = $1 AND is_active = true
        ORDER BY slot ASC, id ASC
        LIMIT $2
    `, userID, ActiveLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.RosterMember, 0)
	for rows.Next() {
		var m models.RosterMember
		if err := rows.Scan(&m.ID, &m.Name, &m.BodyType, &m.Role); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, userID, memberID string) (*models.RosterMember, error) {
	var m models.RosterMember
	err := s.db.QueryRowContext(ctx, `
        SELECT id, creature_name, coalesce(body_type,''), coalesce(role,'')
        FROM user_roster
        WHERE user_id = $1 AND id = $2 AND is_active = true
    `, userID, memberID).Scan(&m.ID, &m.Name, &m.BodyType, &m.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
