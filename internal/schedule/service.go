// Package schedule owns the daily chatroom windows and their lifecycle:
// scheduled -> notified -> open -> closed. Transitions are driven by an
// external poller calling Ticker.Tick; every status write is a conditional
// update so concurrent pollers never double-advance a window.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/internal/glow"
	"github.com/chatlings/pkg/models"
)

const DefaultUpcomingLimit = 10

type Service struct {
	store Store
	gen   *Generator
	now   func() time.Time
}

func NewService(store Store, gen *Generator) *Service {
	if gen == nil {
		gen = NewGenerator(DefaultGeneratorConfig(), nil)
	}
	return &Service{store: store, gen: gen, now: time.Now}
}

// WithClock overrides the time source
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Now returns the service's current time
func (s *Service) Now() time.Time { return s.now() }

// GenerateDailySchedule draws and persists the windows for date
func (s *Service) GenerateDailySchedule(ctx context.Context, date time.Time) ([]*models.ChatroomSchedule, error) {
	windows := s.gen.Windows(date)
	if err := s.store.CreateBatch(ctx, windows); err != nil {
		return nil, apperr.Persistence(fmt.Errorf("save daily schedule: %w", err))
	}
	for _, w := range windows {
		log.Info().
			Int64("schedule_id", w.ID).
			Time("open_time", w.OpenTime).
			Time("close_time", w.CloseTime).
			Msg("Scheduled chatroom window")
	}
	return windows, nil
}

// GetByDate returns the windows already generated for date's calendar day
func (s *Service) GetByDate(ctx context.Context, date time.Time) ([]*models.ChatroomSchedule, error) {
	out, err := s.store.ListByDate(ctx, s.gen.Day(date))
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return out, nil
}

// AssignContent attaches a video and its scoring hints to a window
func (s *Service) AssignContent(ctx context.Context, id int64, meta models.ContentMetadata) (*models.ChatroomSchedule, error) {
	if meta.ExternalID == "" {
		return nil, apperr.Validation(apperr.CodeMissingField, "content id is required")
	}
	content := glow.AnalyzeContent(meta)
	err := s.store.AssignContent(ctx, id, ContentAssignment{
		ContentID:    meta.ExternalID,
		ThumbnailURL: meta.ThumbnailURL,
		Content:      content,
		Ranges:       glow.OptimalRanges(content),
		Hint:         glow.Hint(content),
	})
	if err != nil {
		return nil, s.mapErr(err)
	}
	return s.GetByID(ctx, id)
}

// GetUpcoming lists future scheduled or notified windows, soonest first
func (s *Service) GetUpcoming(ctx context.Context, limit int) ([]*models.ChatroomSchedule, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	out, err := s.store.ListUpcoming(ctx, s.now(), limit)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return out, nil
}

// GetActive returns the open window covering now, or nil when none is open
func (s *Service) GetActive(ctx context.Context) (*models.ChatroomSchedule, error) {
	sc, err := s.store.GetActive(ctx, s.now())
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return sc, nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*models.ChatroomSchedule, error) {
	sc, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return sc, nil
}

func (s *Service) GetNeedingNotification(ctx context.Context) ([]*models.ChatroomSchedule, error) {
	return s.store.ListNeedingNotification(ctx, s.now())
}

func (s *Service) GetNeedingReminder(ctx context.Context) ([]*models.ChatroomSchedule, error) {
	return s.store.ListNeedingReminder(ctx, s.now())
}

func (s *Service) GetToOpen(ctx context.Context) ([]*models.ChatroomSchedule, error) {
	return s.store.ListToOpen(ctx, s.now())
}

func (s *Service) GetToClose(ctx context.Context) ([]*models.ChatroomSchedule, error) {
	return s.store.ListToClose(ctx, s.now())
}

// AdvanceStatus moves a window forward one step. It returns ErrAlreadyAdvanced
// when the window is already at or past to, and a state conflict for any
// other illegal move.
func (s *Service) AdvanceStatus(ctx context.Context, id int64, to models.ScheduleStatus) error {
	if !ValidStatus(to) {
		return apperr.Validation(apperr.CodeInvalidTransition, fmt.Sprintf("unknown status %q", to))
	}
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return s.mapErr(err)
	}
	if reached(current.Status, to) {
		return ErrAlreadyAdvanced
	}
	if !CanTransition(current.Status, to) {
		return apperr.Conflict(apperr.CodeInvalidTransition, fmt.Sprintf("cannot move schedule %d from %s to %s", id, current.Status, to))
	}
	if err := s.store.UpdateStatus(ctx, id, current.Status, to); err != nil {
		if errors.Is(err, ErrAlreadyAdvanced) {
			return ErrAlreadyAdvanced
		}
		return s.mapErr(err)
	}
	log.Debug().
		Int64("schedule_id", id).
		Str("from", string(current.Status)).
		Str("to", string(to)).
		Msg("Advanced chatroom status")
	return nil
}

func (s *Service) IncrementParticipantCount(ctx context.Context, id int64) error {
	if err := s.store.IncrementParticipantCount(ctx, id); err != nil {
		return s.mapErr(err)
	}
	return nil
}

// CleanupOldSchedules deletes windows dated more than keepDays before today
func (s *Service) CleanupOldSchedules(ctx context.Context, keepDays int) (int64, error) {
	now := s.now()
	y, m, d := now.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, -keepDays)
	n, err := s.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, apperr.Persistence(err)
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Cleaned up old chatroom schedules")
	}
	return n, nil
}

func (s *Service) mapErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return apperr.NotFound(apperr.CodeChatroomNotFound, "chatroom not found")
	}
	return apperr.Persistence(err)
}
