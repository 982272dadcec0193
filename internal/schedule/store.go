package schedule

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/chatlings/pkg/models"
)

const dateLayout = "2006-01-02"

var (
	ErrNotFound = errors.New("schedule not found")
	// ErrAlreadyAdvanced means the row was no longer in the expected status.
	// A concurrent poller got there first; callers treat it as success.
	ErrAlreadyAdvanced = errors.New("schedule already advanced")
)

// ContentAssignment is the video data attached to a window
type ContentAssignment struct {
	ContentID    string
	ThumbnailURL string
	Content      models.ContentContext
	Ranges       models.OptimalRanges
	Hint         string
}

type Store interface {
	CreateBatch(ctx context.Context, schedules []*models.ChatroomSchedule) error
	GetByID(ctx context.Context, id int64) (*models.ChatroomSchedule, error)
	// ListByDate returns the windows of one calendar day, earliest first
	ListByDate(ctx context.Context, day time.Time) ([]*models.ChatroomSchedule, error)
	AssignContent(ctx context.Context, id int64, a ContentAssignment) error
	ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*models.ChatroomSchedule, error)
	GetActive(ctx context.Context, now time.Time) (*models.ChatroomSchedule, error)
	ListNeedingNotification(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error)
	ListNeedingReminder(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error)
	ListToOpen(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error)
	ListToClose(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error)
	// UpdateStatus is a compare-and-set on status; ErrAlreadyAdvanced when from no longer matches
	UpdateStatus(ctx context.Context, id int64, from, to models.ScheduleStatus) error
	// MarkReminderSent returns false if the reminder was already marked
	MarkReminderSent(ctx context.Context, id int64, at time.Time) (bool, error)
	IncrementParticipantCount(ctx context.Context, id int64) error
	DeleteBefore(ctx context.Context, date time.Time) (int64, error)
}

// InMemoryStore is a threadsafe in-memory store for tests and local runs
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[int64]*models.ChatroomSchedule
	nextID int64
	now    func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byID: make(map[int64]*models.ChatroomSchedule), now: time.Now}
}

func (s *InMemoryStore) CreateBatch(ctx context.Context, schedules []*models.ChatroomSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sc := range schedules {
		s.nextID++
		sc.ID = s.nextID
		if sc.Status == "" {
			sc.Status = models.StatusScheduled
		}
		sc.CreatedAt = s.now()
		s.byID[sc.ID] = cloneSchedule(sc)
	}
	return nil
}

func (s *InMemoryStore) GetByID(ctx context.Context, id int64) (*models.ChatroomSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSchedule(v), nil
}

func (s *InMemoryStore) ListByDate(ctx context.Context, day time.Time) ([]*models.ChatroomSchedule, error) {
	key := day.Format(dateLayout)
	return s.filter(func(v *models.ChatroomSchedule) bool {
		return v.Date.Format(dateLayout) == key
	}, true), nil
}

func (s *InMemoryStore) AssignContent(ctx context.Context, id int64, a ContentAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	content := a.Content
	ranges := a.Ranges
	hint := a.Hint
	v.ContentID = a.ContentID
	v.ThumbnailURL = a.ThumbnailURL
	v.Content = &content
	v.OptimalRanges = &ranges
	v.Hint = &hint
	return nil
}

func (s *InMemoryStore) ListUpcoming(ctx context.Context, now time.Time, limit int) ([]*models.ChatroomSchedule, error) {
	out := s.filter(func(v *models.ChatroomSchedule) bool {
		return v.OpenTime.After(now) && (v.Status == models.StatusScheduled || v.Status == models.StatusNotified)
	}, true)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) GetActive(ctx context.Context, now time.Time) (*models.ChatroomSchedule, error) {
	out := s.filter(func(v *models.ChatroomSchedule) bool {
		return v.Status == models.StatusOpen && v.IsOpenAt(now)
	}, false)
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out[0], nil
}

func (s *InMemoryStore) ListNeedingNotification(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error) {
	return s.filter(func(v *models.ChatroomSchedule) bool {
		return v.Status == models.StatusScheduled && !v.NotificationTime.After(now) && v.OpenTime.After(now)
	}, true), nil
}

func (s *InMemoryStore) ListNeedingReminder(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error) {
	return s.filter(func(v *models.ChatroomSchedule) bool {
		return v.Status == models.StatusNotified && v.ReminderSentAt == nil && !v.ReminderTime.After(now) && v.OpenTime.After(now)
	}, true), nil
}

func (s *InMemoryStore) ListToOpen(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error) {
	return s.filter(func(v *models.ChatroomSchedule) bool {
		return (v.Status == models.StatusScheduled || v.Status == models.StatusNotified) && v.IsOpenAt(now)
	}, true), nil
}

func (s *InMemoryStore) ListToClose(ctx context.Context, now time.Time) ([]*models.ChatroomSchedule, error) {
	return s.filter(func(v *models.ChatroomSchedule) bool {
		return v.Status == models.StatusOpen && !v.CloseTime.After(now)
	}, true), nil
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, id int64, from, to models.ScheduleStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if v.Status != from {
		return ErrAlreadyAdvanced
	}
	v.Status = to
	return nil
}

func (s *InMemoryStore) MarkReminderSent(ctx context.Context, id int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if v.ReminderSentAt != nil {
		return false, nil
	}
	t := at
	v.ReminderSentAt = &t
	return true, nil
}

func (s *InMemoryStore) IncrementParticipantCount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	v.ParticipantCount++
	return nil
}

func (s *InMemoryStore) DeleteBefore(ctx context.Context, date time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, v := range s.byID {
		if v.Date.Before(date) {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

// filter returns clones ordered by open time
func (s *InMemoryStore) filter(keep func(*models.ChatroomSchedule) bool, asc bool) []*models.ChatroomSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ChatroomSchedule, 0)
	for _, v := range s.byID {
		if keep(v) {
			out = append(out, cloneSchedule(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenTime.Equal(out[j].OpenTime) {
			return out[i].ID < out[j].ID
		}
		if asc {
			return out[i].OpenTime.Before(out[j].OpenTime)
		}
		return out[i].OpenTime.After(out[j].OpenTime)
	})
	return out
}

func cloneSchedule(v *models.ChatroomSchedule) *models.ChatroomSchedule {
	if v == nil {
		return nil
	}
	cp := *v
	if v.Content != nil {
		c := *v.Content
		cp.Content = &c
	}
	if v.OptimalRanges != nil {
		r := *v.OptimalRanges
		cp.OptimalRanges = &r
	}
	if v.Hint != nil {
		h := *v.Hint
		cp.Hint = &h
	}
	if v.ReminderSentAt != nil {
		t := *v.ReminderSentAt
		cp.ReminderSentAt = &t
	}
	return &cp
}
