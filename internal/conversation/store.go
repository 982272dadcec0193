package conversation

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
	ErrNotFound  = errors.New("conversation not found")
	ErrDuplicate = errors.New("conversation already exists for content")
)

// Stats summarises generation activity
type Stats struct {
	TotalConversations int        `json:"total_conversations"`
	TotalComments      int        `json:"total_comments"`
	TotalCost          float64    `json:"total_cost"`
	AvgCost            float64    `json:"avg_cost"`
	AvgDurationMs      float64    `json:"avg_duration_ms"`
	LastGeneratedAt    *time.Time `json:"last_generated_at,omitempty"`
}

// Store persists base conversations; content id is unique
type Store interface {
	Create(ctx context.Context, c *models.BaseConversation) error
	GetByID(ctx context.Context, id int64) (*models.BaseConversation, error)
	GetByContentID(ctx context.Context, contentID string) (*models.BaseConversation, error)
	GetLatest(ctx context.Context) (*models.BaseConversation, error)
	List(ctx context.Context, limit int) ([]*models.BaseConversation, error)
	Stats(ctx context.Context) (*Stats, error)
}

// InMemoryStore is a threadsafe in-memory store for tests
type InMemoryStore struct {
	mu        sync.RWMutex
	byID      map[int64]*models.BaseConversation
	byContent map[string]int64
	nextID    int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:      make(map[int64]*models.BaseConversation),
		byContent: make(map[string]int64),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, c *models.BaseConversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byContent[c.ContentID]; ok {
		return ErrDuplicate
	}
	s.nextID++
	c.ID = s.nextID
	if c.GeneratedAt.IsZero() {
		c.GeneratedAt = time.Now()
	}
	s.byID[c.ID] = cloneConversation(c)
	s.byContent[c.ContentID] = c.ID
	return nil
}

func (s *InMemoryStore) GetByID(ctx context.Context, id int64) (*models.BaseConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(v), nil
}

func (s *InMemoryStore) GetByContentID(ctx context.Context, contentID string) (*models.BaseConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byContent[contentID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneConversation(s.byID[id]), nil
}

func (s *InMemoryStore) GetLatest(ctx context.Context) (*models.BaseConversation, error) {
	list, _ := s.List(ctx, 1)
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

func (s *InMemoryStore) List(ctx context.Context, limit int) ([]*models.BaseConversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.BaseConversation, 0, len(s.byID))
	for _, v := range s.byID {
		out = append(out, cloneConversation(v))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := &Stats{}
	var totalDuration int64
	for _, v := range s.byID {
		st.TotalConversations++
		st.TotalComments += v.TotalCommentCount
		st.TotalCost += v.GenerationCostUnits
		totalDuration += v.GenerationDurationMs
		if st.LastGeneratedAt == nil || v.GeneratedAt.After(*st.LastGeneratedAt) {
			t := v.GeneratedAt
			st.LastGeneratedAt = &t
		}
	}
	if st.TotalConversations > 0 {
		st.AvgCost = st.TotalCost / float64(st.TotalConversations)
		st.AvgDurationMs = float64(totalDuration) / float64(st.TotalConversations)
	}
	return st, nil
}

// cloneConversation deep-copies through JSON so callers never share nodes
func cloneConversation(c *models.BaseConversation) *models.BaseConversation {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Forest != nil {
		raw, err := json.Marshal(c.Forest)
		if err == nil {
			var forest []*models.CommentNode
			if json.Unmarshal(raw, &forest) == nil {
				cp.Forest = forest
			}
		}
	}
	return &cp
}
