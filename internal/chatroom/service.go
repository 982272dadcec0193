// Package chatroom lets users take part in a scheduled window with one of
// their chatlings and an attitude, scoring the attempt for glow.
package chatroom

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/internal/glow"
	"github.com/chatlings/internal/ledger"
	"github.com/chatlings/internal/roster"
	"github.com/chatlings/internal/schedule"
	"github.com/chatlings/pkg/models"
)

// HistoryWindow is how many prior attitudes feed the variety bonus
const HistoryWindow = 5

// Preview is a reward estimate that records nothing
type Preview struct {
	EstimatedReward int                    `json:"estimated_glow"`
	Breakdown       models.RewardBreakdown `json:"breakdown"`
	OptimalRanges   models.OptimalRanges   `json:"optimal_ranges"`
	Hint            string                 `json:"hint"`
}

type Service struct {
	schedules      *schedule.Service
	participations Store
	roster         roster.Store
	ledger         ledger.Ledger
}

func NewService(schedules *schedule.Service, participations Store, rosterStore roster.Store, l ledger.Ledger) *Service {
	return &Service{schedules: schedules, participations: participations, roster: rosterStore, ledger: l}
}

func (s *Service) GetUpcomingSchedules(ctx context.Context, limit int) ([]*models.ChatroomSchedule, error) {
	return s.schedules.GetUpcoming(ctx, limit)
}

// GetActiveSchedule returns nil, nil when no window is open
func (s *Service) GetActiveSchedule(ctx context.Context) (*models.ChatroomSchedule, error) {
	return s.schedules.GetActive(ctx)
}

func (s *Service) GetScheduleByID(ctx context.Context, id int64) (*models.ChatroomSchedule, error) {
	return s.schedules.GetByID(ctx, id)
}

// Participate scores and records userID's entry into chatroomID. Checks run in
// a fixed order and nothing is written unless all of them pass.
func (s *Service) Participate(ctx context.Context, userID string, chatroomID int64, rosterMemberID string, attitude models.AttitudeProfile) (*models.ParticipationRecord, error) {
	if userID == "" || rosterMemberID == "" {
		return nil, apperr.Validation(apperr.CodeMissingField, "user id and chatling id are required")
	}
	if err := attitude.Validate(); err != nil {
		return nil, apperr.WrapValidation(apperr.CodeInvalidAttitude, err)
	}

	room, err := s.schedules.GetByID(ctx, chatroomID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOpen(room); err != nil {
		return nil, err
	}

	if _, err := s.roster.Get(ctx, userID, rosterMemberID); err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			return nil, apperr.NotFound(apperr.CodeRosterMemberNotFound, "chatling not found on your team")
		}
		return nil, apperr.Persistence(err)
	}

	if existing, err := s.participations.Get(ctx, userID, chatroomID); err == nil {
		return nil, s.settleExisting(ctx, existing)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, apperr.Persistence(err)
	}

	result, err := s.score(ctx, userID, room, attitude)
	if err != nil {
		return nil, err
	}

	rec := &models.ParticipationRecord{
		UserID:         userID,
		ChatroomID:     chatroomID,
		RosterMemberID: rosterMemberID,
		Attitude:       attitude,
		RewardEarned:   result.Reward,
		Breakdown:      result.Breakdown,
		ParticipatedAt: s.schedules.Now(),
	}
	if err := s.participations.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicate) {
			existing, gerr := s.participations.Get(ctx, userID, chatroomID)
			if gerr != nil {
				return nil, apperr.Persistence(gerr)
			}
			return nil, s.settleExisting(ctx, existing)
		}
		return nil, apperr.Persistence(err)
	}

	if err := s.credit(ctx, rec); err != nil {
		return nil, err
	}
	// display-only counter, failures are logged
	if err := s.schedules.IncrementParticipantCount(ctx, chatroomID); err != nil {
		log.Warn().Err(err).Int64("chatroom_id", chatroomID).Msg("Failed to increment participant count")
	}

	log.Info().
		Str("user_id", userID).
		Int64("chatroom_id", chatroomID).
		Str("chatling_id", rosterMemberID).
		Int("glow", rec.RewardEarned).
		Msg("Chatroom participation recorded")
	return rec, nil
}

// PreviewReward runs the same scoring as Participate without any writes.
// It does not require the window to be open.
func (s *Service) PreviewReward(ctx context.Context, userID string, chatroomID int64, attitude models.AttitudeProfile) (*Preview, error) {
	if err := attitude.Validate(); err != nil {
		return nil, apperr.WrapValidation(apperr.CodeInvalidAttitude, err)
	}
	room, err := s.schedules.GetByID(ctx, chatroomID)
	if err != nil {
		return nil, err
	}
	result, err := s.score(ctx, userID, room, attitude)
	if err != nil {
		return nil, err
	}
	cc := contextOf(room)
	return &Preview{
		EstimatedReward: result.Reward,
		Breakdown:       result.Breakdown,
		OptimalRanges:   glow.OptimalRanges(cc),
		Hint:            glow.Hint(cc),
	}, nil
}

// ListParticipations returns the user's recent entries, newest first
func (s *Service) ListParticipations(ctx context.Context, userID string, limit int) ([]*models.ParticipationRecord, error) {
	recs, err := s.participations.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return recs, nil
}

// settleExisting re-issues the credit for a recorded entry, so a caller
// retrying after a failed credit still gets paid, then reports the conflict
func (s *Service) settleExisting(ctx context.Context, rec *models.ParticipationRecord) error {
	if err := s.credit(ctx, rec); err != nil {
		return err
	}
	return alreadyParticipated()
}

// credit is idempotent per (user, chatroom)
func (s *Service) credit(ctx context.Context, rec *models.ParticipationRecord) error {
	_, err := s.ledger.Credit(ctx, rec.UserID, rec.RewardEarned, ledger.ReasonParticipation, strconv.FormatInt(rec.ChatroomID, 10))
	if err != nil {
		return apperr.Persistence(err)
	}
	return nil
}

// checkOpen accepts only a window the ticker has opened whose time range
// covers now, so participation agrees with GetActiveSchedule
func (s *Service) checkOpen(room *models.ChatroomSchedule) error {
	now := s.schedules.Now()
	switch {
	case room.Status == models.StatusClosed || !now.Before(room.CloseTime):
		return apperr.Conflict(apperr.CodeChatroomClosed, fmt.Sprintf("chatroom %d has closed", room.ID))
	case now.Before(room.OpenTime):
		return apperr.Conflict(apperr.CodeChatroomNotOpenYet, fmt.Sprintf("chatroom %d opens at %s", room.ID, room.OpenTime.Format("15:04")))
	case room.Status != models.StatusOpen:
		return apperr.Conflict(apperr.CodeChatroomNotOpenYet, fmt.Sprintf("chatroom %d has not been opened yet", room.ID))
	}
	return nil
}

func (s *Service) score(ctx context.Context, userID string, room *models.ChatroomSchedule, attitude models.AttitudeProfile) (glow.Result, error) {
	history, err := s.participations.RecentAttitudes(ctx, userID, HistoryWindow)
	if err != nil {
		return glow.Result{}, apperr.Persistence(err)
	}
	return glow.Score(attitude, contextOf(room), history)
}

func contextOf(room *models.ChatroomSchedule) models.ContentContext {
	if room.Content == nil {
		return models.ContentContext{Category: glow.CategoryGeneral}
	}
	return *room.Content
}

func alreadyParticipated() error {
	return apperr.Conflict(apperr.CodeAlreadyParticipated, "you have already participated in this chatroom")
}
