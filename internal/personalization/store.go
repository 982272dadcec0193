package personalization

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/chatlings/pkg/models"
)

var (
	ErrNotFound  = errors.New("personalized conversation not found")
	ErrDuplicate = errors.New("personalized conversation already exists")
)

// Store persists personalized conversations, unique per (user, base id)
type Store interface {
	Get(ctx context.Context, userID string, baseID int64) (*models.PersonalizedConversation, error)
	Create(ctx context.Context, pc *models.PersonalizedConversation) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.PersonalizedConversation, error)
}

// AttitudeStore persists each user's chosen attitude
type AttitudeStore interface {
	GetAttitude(ctx context.Context, userID string) (*models.AttitudeProfile, error)
	SetAttitude(ctx context.Context, userID string, a models.AttitudeProfile) error
}

type pairKey struct {
	userID string
	baseID int64
}

// InMemoryStore implements Store and AttitudeStore
type InMemoryStore struct {
	mu        sync.RWMutex
	views     map[pairKey]*models.PersonalizedConversation
	attitudes map[string]models.AttitudeProfile
	nextID    int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		views:     make(map[pairKey]*models.PersonalizedConversation),
		attitudes: make(map[string]models.AttitudeProfile),
	}
}

func (s *InMemoryStore) Get(ctx context.Context, userID string, baseID int64) (*models.PersonalizedConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pc, ok := s.views[pairKey{userID, baseID}]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePersonalized(pc), nil
}

func (s *InMemoryStore) Create(ctx context.Context, pc *models.PersonalizedConversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pairKey{pc.UserID, pc.BaseConversationID}
	if _, ok := s.views[k]; ok {
		return ErrDuplicate
	}
	s.nextID++
	pc.ID = s.nextID
	if pc.ViewedAt.IsZero() {
		pc.ViewedAt = time.Now()
	}
	s.views[k] = clonePersonalized(pc)
	return nil
}

func (s *InMemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*models.PersonalizedConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.PersonalizedConversation, 0)
	for k, pc := range s.views {
		if k.userID == userID {
			out = append(out, clonePersonalized(pc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ViewedAt.Equal(out[j].ViewedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].ViewedAt.After(out[j].ViewedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) GetAttitude(ctx context.Context, userID string) (*models.AttitudeProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attitudes[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *InMemoryStore) SetAttitude(ctx context.Context, userID string, a models.AttitudeProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attitudes[userID] = a
	return nil
}

func clonePersonalized(pc *models.PersonalizedConversation) *models.PersonalizedConversation {
	if pc == nil {
		return nil
	}
	raw, err := json.Marshal(pc)
	if err != nil {
		cp := *pc
		return &cp
	}
	var cp models.PersonalizedConversation
	if err := json.Unmarshal(raw, &cp); err != nil {
		cp = *pc
	}
	cp.FromCache = pc.FromCache
	return &cp
}
