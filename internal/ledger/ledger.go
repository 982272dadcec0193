// Package ledger records glow credited to users. Each (user, reason,
// reference) triple is credited at most once.
package ledger

import (
	"context"
	"database/sql"
	"sync"
)

// Credit reasons
const (
	ReasonConversationView = "conversation_view"
	ReasonParticipation    = "chatroom_participation"
)

type Ledger interface {
	// Credit adds amount (which may be negative) and reports whether this
	// call applied it
	Credit(ctx context.Context, userID string, amount int, reason, reference string) (bool, error)
	Balance(ctx context.Context, userID string) (int, error)
}

type entryKey struct {
	userID, reason, reference string
}

type InMemoryLedger struct {
	mu       sync.Mutex
	entries  map[entryKey]int
	balances map[string]int
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{entries: make(map[entryKey]int), balances: make(map[string]int)}
}

func (l *InMemoryLedger) Credit(ctx context.Context, userID string, amount int, reason, reference string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := entryKey{userID, reason, reference}
	if _, ok := l.entries[k]; ok {
		return false, nil
	}
	l.entries[k] = amount
	l.balances[userID] += amount
	return true, nil
}

func (l *InMemoryLedger) Balance(ctx context.Context, userID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}

type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger { return &PostgresLedger{db: db} }

func (l *PostgresLedger) Credit(ctx context.Context, userID string, amount int, reason, reference string) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
        INSERT INTO glow_ledger (user_id, amount, reason, reference)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (user_id, reason, reference) DO NOTHING
    `, userID, amount, reason, reference)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *PostgresLedger) Balance(ctx context.Context, userID string) (int, error) {
	var total int
	err := l.db.QueryRowContext(ctx, `SELECT coalesce(sum(amount),0) FROM glow_ledger WHERE user_id=$1`, userID).Scan(&total)
	return total, err
}
