package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Attitude dimension bounds
const (
	AttitudeMin = 1
	AttitudeMax = 10
)

var ErrInvalidAttitude = errors.New("attitude out of range")

// Sentiment is the coarse polarity label carried by every generated comment
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment accepts any casing of the three known labels
func ParseSentiment(s string) (Sentiment, bool) {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive, true
	case SentimentNeutral:
		return SentimentNeutral, true
	case SentimentNegative:
		return SentimentNegative, true
	}
	return "", false
}

// CommentNode is one comment in a generated discussion tree
type CommentNode struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Sentiment Sentiment      `json:"sentiment"`
	Children  []*CommentNode `json:"replies"`
}

// NewCommentNode returns a node with a non-nil empty child list
func NewCommentNode(id, text string, sentiment Sentiment) *CommentNode {
	return &CommentNode{ID: id, Text: text, Sentiment: sentiment, Children: []*CommentNode{}}
}

// CountComments counts every node in the forest, replies included
func CountComments(forest []*CommentNode) int {
	total := 0
	for _, n := range forest {
		if n == nil {
			continue
		}
		total += 1 + CountComments(n.Children)
	}
	return total
}

// WalkComments visits nodes in document order (pre-order, left to right)
func WalkComments(forest []*CommentNode, fn func(n *CommentNode, depth int)) {
	var walk func(nodes []*CommentNode, depth int)
	walk = func(nodes []*CommentNode, depth int) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			fn(n, depth)
			walk(n.Children, depth+1)
		}
	}
	walk(forest, 0)
}

// BaseConversation is a generated, immutable comment forest for one content item
type BaseConversation struct {
	ID                   int64          `json:"id" db:"id"`
	ContentID            string         `json:"content_id" db:"content_id"`
	ContentTitle         string         `json:"content_title" db:"content_title"`
	ContentCategory      string         `json:"content_category" db:"content_category"`
	Forest               []*CommentNode `json:"forest" db:"conversation_data"`
	TotalCommentCount    int            `json:"total_comment_count" db:"total_comment_count"`
	ModelIdentifier      string         `json:"model" db:"model"`
	InputTokens          int            `json:"input_tokens" db:"input_tokens"`
	OutputTokens         int            `json:"output_tokens" db:"output_tokens"`
	GenerationCostUnits  float64        `json:"generation_cost" db:"generation_cost"`
	GenerationDurationMs int64          `json:"generation_duration_ms" db:"generation_duration_ms"`
	GeneratedAt          time.Time      `json:"generated_at" db:"generated_at"`
}

// ContentMetadata describes the source video a conversation is generated for
type ContentMetadata struct {
	ExternalID   string `json:"external_id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Category     string `json:"category,omitempty"`
	CategoryID   string `json:"category_id,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// ContentContext is the category information used for scoring
type ContentContext struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// AttitudeProfile is a user's chosen tone, each dimension in [1,10]
type AttitudeProfile struct {
	Enthusiasm int `json:"enthusiasm" db:"enthusiasm"`
	Criticism  int `json:"criticism" db:"criticism"`
	Humor      int `json:"humor" db:"humor"`
}

// DefaultAttitude is used when a user has never saved one
func DefaultAttitude() AttitudeProfile {
	return AttitudeProfile{Enthusiasm: 5, Criticism: 5, Humor: 5}
}

// Validate rejects out-of-range values; nothing is clamped
func (a AttitudeProfile) Validate() error {
	dims := []struct {
		name  string
		value int
	}{
		{"enthusiasm", a.Enthusiasm},
		{"criticism", a.Criticism},
		{"humor", a.Humor},
	}
	for _, d := range dims {
		if d.value < AttitudeMin || d.value > AttitudeMax {
			return fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrInvalidAttitude, d.name, AttitudeMin, AttitudeMax, d.value)
		}
	}
	return nil
}

// Key is the tuple identity used for variety checks
func (a AttitudeProfile) Key() string {
	return fmt.Sprintf("%d-%d-%d", a.Enthusiasm, a.Criticism, a.Humor)
}

// Values returns the dimensions in enthusiasm, criticism, humor order
func (a AttitudeProfile) Values() [3]int {
	return [3]int{a.Enthusiasm, a.Criticism, a.Humor}
}

// Archetype is the dominant tone derived from an attitude profile
type Archetype string

const (
	ArchetypeEnthusiastic Archetype = "enthusiastic"
	ArchetypeSkeptical    Archetype = "skeptical"
	ArchetypeHumorous     Archetype = "humorous"
	ArchetypeBalanced     Archetype = "balanced"
)

// DimensionRange is one dimension of an optimal attitude profile
type DimensionRange struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Weight float64 `json:"weight"`
}

// OptimalProfile is the per-category scoring target
type OptimalProfile struct {
	Enthusiasm DimensionRange `json:"enthusiasm"`
	Criticism  DimensionRange `json:"criticism"`
	Humor      DimensionRange `json:"humor"`
}

// OptimalRanges is the display form of an optimal profile (no weights)
type OptimalRanges struct {
	EnthusiasmMin int `json:"enthusiasm_min" db:"optimal_enthusiasm_min"`
	EnthusiasmMax int `json:"enthusiasm_max" db:"optimal_enthusiasm_max"`
	CriticismMin  int `json:"criticism_min" db:"optimal_criticism_min"`
	CriticismMax  int `json:"criticism_max" db:"optimal_criticism_max"`
	HumorMin      int `json:"humor_min" db:"optimal_humor_min"`
	HumorMax      int `json:"humor_max" db:"optimal_humor_max"`
}

// RewardBreakdown is the itemised engagement score
type RewardBreakdown struct {
	Base             float64 `json:"base"`
	MatchBonus       float64 `json:"match_bonus"`
	ExtremismPenalty float64 `json:"extremism_penalty"`
	VarietyBonus     float64 `json:"variety_bonus"`
	Total            int     `json:"total"`
}

// RosterMember is one creature on a user's active team
type RosterMember struct {
	ID       string `json:"id" db:"id"`
	Name     string `json:"name" db:"creature_name"`
	BodyType string `json:"body_type,omitempty" db:"body_type"`
	Role     string `json:"role,omitempty" db:"role"`
}

// PersonalizedNode mirrors a base CommentNode with assignment and rewrite applied
type PersonalizedNode struct {
	ID             string              `json:"id"`
	OriginalText   string              `json:"original_text"`
	Text           string              `json:"text"`
	Sentiment      Sentiment           `json:"sentiment"`
	RosterMemberID string              `json:"chatling_id"`
	RosterName     string              `json:"chatling_name"`
	RewardDelta    int                 `json:"glow"`
	Children       []*PersonalizedNode `json:"replies"`
}

// SentimentImpact aggregates reward per sentiment
type SentimentImpact struct {
	Count  int `json:"count"`
	Reward int `json:"glow"`
}

// RosterImpact aggregates reward per roster member
type RosterImpact struct {
	Name        string `json:"name"`
	TotalReward int    `json:"total_glow"`
	Comments    int    `json:"comments"`
}

// ImpactEntry is one row of the flat per-node reward breakdown
type ImpactEntry struct {
	NodeID         string    `json:"comment_id"`
	RosterMemberID string    `json:"chatling_id"`
	RosterName     string    `json:"chatling_name"`
	Sentiment      Sentiment `json:"sentiment"`
	Delta          int       `json:"glow"`
	Text           string    `json:"text"`
}

// ConversationImpact is the reward summary of a personalized conversation
type ConversationImpact struct {
	TotalRewardDelta int                           `json:"total_glow_change"`
	BySentiment      map[Sentiment]SentimentImpact `json:"by_sentiment"`
	ByRosterMember   map[string]RosterImpact       `json:"by_chatling"`
	Breakdown        []ImpactEntry                 `json:"breakdown"`
}

// PersonalizedConversation is a per-user rendition of a base conversation
type PersonalizedConversation struct {
	ID                 int64               `json:"id" db:"id"`
	BaseConversationID int64               `json:"base_conversation_id" db:"base_conversation_id"`
	UserID             string              `json:"user_id" db:"user_id"`
	AssignedRosterIDs  []string            `json:"assigned_chatlings" db:"assigned_chatlings"`
	Attitude           AttitudeProfile     `json:"attitude"`
	Archetype          Archetype           `json:"attitude_type" db:"attitude_type"`
	CustomizedForest   []*PersonalizedNode `json:"conversation" db:"customized_data"`
	Impact             ConversationImpact  `json:"impact" db:"impact"`
	TotalRewardDelta   int                 `json:"glow_impact" db:"glow_impact"`
	ViewedAt           time.Time           `json:"viewed_at" db:"viewed_at"`
	FromCache          bool                `json:"from_cache"`
}

// ScheduleStatus is the lifecycle state of a chatroom window
type ScheduleStatus string

const (
	StatusScheduled ScheduleStatus = "scheduled"
	StatusNotified  ScheduleStatus = "notified"
	StatusOpen      ScheduleStatus = "open"
	StatusClosed    ScheduleStatus = "closed"
)

// ChatroomSchedule is one time-boxed participation window
type ChatroomSchedule struct {
	ID               int64           `json:"id" db:"id"`
	Date             time.Time       `json:"schedule_date" db:"schedule_date"`
	OpenTime         time.Time       `json:"open_time" db:"open_time"`
	CloseTime        time.Time       `json:"close_time" db:"close_time"`
	NotificationTime time.Time       `json:"notification_time" db:"notification_time"`
	ReminderTime     time.Time       `json:"reminder_time" db:"reminder_time"`
	ReminderSentAt   *time.Time      `json:"reminder_sent_at,omitempty" db:"reminder_sent_at"`
	ContentID        string          `json:"video_id,omitempty" db:"video_id"`
	ThumbnailURL     string          `json:"thumbnail_url,omitempty" db:"video_thumbnail"`
	Content          *ContentContext `json:"content,omitempty"`
	OptimalRanges    *OptimalRanges  `json:"optimal_ranges,omitempty"`
	Hint             *string         `json:"hint,omitempty" db:"hint"`
	Status           ScheduleStatus  `json:"status" db:"status"`
	ParticipantCount int             `json:"participant_count" db:"participant_count"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// IsOpenAt reports whether t falls in the half-open window [open, close)
func (s *ChatroomSchedule) IsOpenAt(t time.Time) bool {
	return !t.Before(s.OpenTime) && t.Before(s.CloseTime)
}

// ParticipationRecord is one user's scored entry into a chatroom
type ParticipationRecord struct {
	ID             int64           `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	ChatroomID     int64           `json:"chatroom_id" db:"chatroom_id"`
	RosterMemberID string          `json:"chatling_id" db:"creature_id"`
	Attitude       AttitudeProfile `json:"attitude"`
	RewardEarned   int             `json:"glow_earned" db:"glow_earned"`
	Breakdown      RewardBreakdown `json:"breakdown"`
	ParticipatedAt time.Time       `json:"participated_at" db:"participated_at"`
}
