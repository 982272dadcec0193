// Package personalization serves each user their own version of a generated
// conversation, creating it at most once per (user, base conversation).
package personalization

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/internal/cache"
	"github.com/chatlings/internal/conversation"
	"github.com/chatlings/internal/customizer"
	"github.com/chatlings/internal/ledger"
	"github.com/chatlings/internal/roster"
	"github.com/chatlings/pkg/models"
)

const defaultHistoryLimit = 10

// HistoryEntry is one viewed conversation
type HistoryEntry struct {
	ID                 int64            `json:"id"`
	BaseConversationID int64            `json:"base_conversation_id"`
	ContentID          string           `json:"video_id"`
	ContentTitle       string           `json:"title"`
	Archetype          models.Archetype `json:"attitude_type"`
	RewardDelta        int              `json:"glow_change"`
	ViewedAt           time.Time        `json:"viewed_at"`
}

// History is a user's recent views with glow totals
type History struct {
	Entries     []HistoryEntry `json:"conversations"`
	TotalViews  int            `json:"total_conversations"`
	TotalGlow   int            `json:"total_glow"`
	AverageGlow float64        `json:"average_glow"`
}

// AttitudeView is a stored attitude with its derived archetype
type AttitudeView struct {
	models.AttitudeProfile
	Archetype models.Archetype `json:"attitude_type"`
	IsDefault bool             `json:"is_default"`
}

type Service struct {
	conversations conversation.Store
	views         Store
	attitudes     AttitudeStore
	roster        roster.Store
	ledger        ledger.Ledger
	customizer    *customizer.Customizer
	cache         cache.ConversationCache
}

func NewService(conversations conversation.Store, views Store, attitudes AttitudeStore, rosterStore roster.Store, l ledger.Ledger, c *customizer.Customizer) *Service {
	return &Service{
		conversations: conversations,
		views:         views,
		attitudes:     attitudes,
		roster:        rosterStore,
		ledger:        l,
		customizer:    c,
		cache:         cache.Noop{},
	}
}

// WithCache puts a read-through cache in front of the view store
func (s *Service) WithCache(c cache.ConversationCache) *Service {
	if c != nil {
		s.cache = c
	}
	return s
}

// GetPersonalizedConversation returns userID's version of the conversation for
// contentID, or of the latest conversation when contentID is empty.
// Concurrent first requests for the same pair all return the same stored
// record and glow is credited once.
func (s *Service) GetPersonalizedConversation(ctx context.Context, userID, contentID string) (*models.PersonalizedConversation, error) {
	if userID == "" {
		return nil, apperr.Validation(apperr.CodeMissingField, "user id is required")
	}

	base, err := s.baseConversation(ctx, contentID)
	if err != nil {
		return nil, err
	}

	if pc, ok, err := s.cache.Get(ctx, userID, base.ID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Int64("base_conversation_id", base.ID).Msg("Conversation cache read failed")
	} else if ok {
		pc.FromCache = true
		return pc, nil
	}

	existing, err := s.views.Get(ctx, userID, base.ID)
	switch {
	case err == nil:
		// credit is keyed by base id, so this only applies if the first credit failed
		if err := s.credit(ctx, existing); err != nil {
			return nil, err
		}
		return s.served(ctx, existing), nil
	case !errors.Is(err, ErrNotFound):
		return nil, apperr.Persistence(err)
	}

	attitude, err := s.attitude(ctx, userID)
	if err != nil {
		return nil, err
	}
	team, err := s.roster.Active(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	pc, err := s.customizer.Personalize(base, team, userID, attitude)
	if err != nil {
		return nil, err
	}

	if err := s.views.Create(ctx, pc); err != nil {
		if !errors.Is(err, ErrDuplicate) {
			return nil, apperr.Persistence(err)
		}
		winner, err := s.views.Get(ctx, userID, base.ID)
		if err != nil {
			return nil, apperr.Persistence(err)
		}
		log.Debug().Str("user_id", userID).Int64("base_conversation_id", base.ID).Msg("Lost personalization race, returning stored version")
		return s.served(ctx, winner), nil
	}

	if err := s.credit(ctx, pc); err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, pc); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Conversation cache write failed")
	}
	log.Info().
		Str("user_id", userID).
		Int64("base_conversation_id", base.ID).
		Str("attitude_type", string(pc.Archetype)).
		Int("glow", pc.TotalRewardDelta).
		Msg("Personalized conversation created")
	return pc, nil
}

func (s *Service) served(ctx context.Context, pc *models.PersonalizedConversation) *models.PersonalizedConversation {
	if err := s.cache.Set(ctx, pc); err != nil {
		log.Warn().Err(err).Str("user_id", pc.UserID).Msg("Conversation cache write failed")
	}
	pc.FromCache = true
	return pc
}

func (s *Service) credit(ctx context.Context, pc *models.PersonalizedConversation) error {
	_, err := s.ledger.Credit(ctx, pc.UserID, pc.TotalRewardDelta, ledger.ReasonConversationView, strconv.FormatInt(pc.BaseConversationID, 10))
	if err != nil {
		return apperr.Persistence(err)
	}
	return nil
}

func (s *Service) baseConversation(ctx context.Context, contentID string) (*models.BaseConversation, error) {
	var base *models.BaseConversation
	var err error
	if contentID == "" {
		base, err = s.conversations.GetLatest(ctx)
	} else {
		base, err = s.conversations.GetByContentID(ctx, contentID)
	}
	if errors.Is(err, conversation.ErrNotFound) {
		return nil, apperr.NotFound(apperr.CodeContentNotFound, "no conversation available")
	}
	if err != nil {
		return nil, apperr.Persistence(err)
	}
	return base, nil
}

func (s *Service) attitude(ctx context.Context, userID string) (models.AttitudeProfile, error) {
	a, err := s.attitudes.GetAttitude(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return models.DefaultAttitude(), nil
	}
	if err != nil {
		return models.AttitudeProfile{}, apperr.Persistence(err)
	}
	return *a, nil
}

// GetAttitude returns the saved attitude or the default when none is saved
func (s *Service) GetAttitude(ctx context.Context, userID string) (*AttitudeView, error) {
	a, err := s.attitudes.GetAttitude(ctx, userID)
	isDefault := false
	switch {
	case errors.Is(err, ErrNotFound):
		d := models.DefaultAttitude()
		a, isDefault = &d, true
	case err != nil:
		return nil, apperr.Persistence(err)
	}
	return &AttitudeView{AttitudeProfile: *a, Archetype: customizer.DeriveArchetype(*a), IsDefault: isDefault}, nil
}

// SetAttitude validates and saves; it affects conversations personalized later
func (s *Service) SetAttitude(ctx context.Context, userID string, a models.AttitudeProfile) (*AttitudeView, error) {
	if userID == "" {
		return nil, apperr.Validation(apperr.CodeMissingField, "user id is required")
	}
	if err := a.Validate(); err != nil {
		return nil, apperr.WrapValidation(apperr.CodeInvalidAttitude, err)
	}
	if err := s.attitudes.SetAttitude(ctx, userID, a); err != nil {
		return nil, apperr.Persistence(err)
	}
	return &AttitudeView{AttitudeProfile: a, Archetype: customizer.DeriveArchetype(a)}, nil
}

// GetHistory lists the user's recent views, newest first
func (s *Service) GetHistory(ctx context.Context, userID string, limit int) (*History, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	views, err := s.views.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Persistence(err)
	}

	h := &History{Entries: make([]HistoryEntry, 0, len(views))}
	for _, v := range views {
		entry := HistoryEntry{
			ID:                 v.ID,
			BaseConversationID: v.BaseConversationID,
			Archetype:          v.Archetype,
			RewardDelta:        v.TotalRewardDelta,
			ViewedAt:           v.ViewedAt,
		}
		if base, err := s.conversations.GetByID(ctx, v.BaseConversationID); err == nil {
			entry.ContentID = base.ContentID
			entry.ContentTitle = base.ContentTitle
		}
		h.Entries = append(h.Entries, entry)
		h.TotalGlow += v.TotalRewardDelta
	}
	h.TotalViews = len(h.Entries)
	if h.TotalViews > 0 {
		h.AverageGlow = float64(h.TotalGlow) / float64(h.TotalViews)
	}
	return h, nil
}
