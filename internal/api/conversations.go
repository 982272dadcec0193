package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/internal/glow"
)

// conversationSummary is a base conversation without its forest
type conversationSummary struct {
	ID                int64     `json:"id"`
	ContentID         string    `json:"video_id"`
	Title             string    `json:"title"`
	Category          string    `json:"category,omitempty"`
	TotalCommentCount int       `json:"total_comment_count"`
	Model             string    `json:"model"`
	GenerationCost    float64   `json:"generation_cost"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// listConversations handles GET /api/v1/conversations
func (s *Server) listConversations(c echo.Context) error {
	convs, err := s.deps.Conversations.List(c.Request().Context(), parseLimit(c, 20, 100))
	if err != nil {
		return toHTTPError(apperr.Persistence(err))
	}
	out := make([]conversationSummary, 0, len(convs))
	for _, bc := range convs {
		out = append(out, conversationSummary{
			ID:                bc.ID,
			ContentID:         bc.ContentID,
			Title:             bc.ContentTitle,
			Category:          bc.ContentCategory,
			TotalCommentCount: bc.TotalCommentCount,
			Model:             bc.ModelIdentifier,
			GenerationCost:    bc.GenerationCostUnits,
			GeneratedAt:       bc.GeneratedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": out,
		"count":         len(out),
	})
}

// getConversationStats handles GET /api/v1/conversations/stats
func (s *Server) getConversationStats(c echo.Context) error {
	stats, err := s.deps.Conversations.Stats(c.Request().Context())
	if err != nil {
		return toHTTPError(apperr.Persistence(err))
	}
	return c.JSON(http.StatusOK, stats)
}

// queueBatch handles POST /api/v1/conversations/batch
func (s *Server) queueBatch(c echo.Context) error {
	if s.deps.Batches == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "batch queue is not configured")
	}
	var req struct {
		Limit int `json:"limit"`
	}
	if err := c.Bind(&req); err != nil || req.Limit < 0 {
		return toHTTPError(apperr.Validation(apperr.CodeMissingField, "invalid request body"))
	}
	if err := s.deps.Batches.QueueConversationBatch(c.Request().Context(), req.Limit); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "queued"})
}

// getPersonalizedConversation handles GET /api/v1/conversations/personalized?video_id=
func (s *Server) getPersonalizedConversation(c echo.Context) error {
	pc, err := s.deps.Personalization.GetPersonalizedConversation(c.Request().Context(), userFrom(c), c.QueryParam("video_id"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, pc)
}

// getHistory handles GET /api/v1/conversations/history
func (s *Server) getHistory(c echo.Context) error {
	h, err := s.deps.Personalization.GetHistory(c.Request().Context(), userFrom(c), parseLimit(c, 10, 100))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, h)
}

// getAttitude handles GET /api/v1/attitude
func (s *Server) getAttitude(c echo.Context) error {
	view, err := s.deps.Personalization.GetAttitude(c.Request().Context(), userFrom(c))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// setAttitude handles PUT /api/v1/attitude
func (s *Server) setAttitude(c echo.Context) error {
	var req attitudeRequest
	if err := c.Bind(&req); err != nil {
		return toHTTPError(apperr.Validation(apperr.CodeMissingField, "invalid request body"))
	}
	view, err := s.deps.Personalization.SetAttitude(c.Request().Context(), userFrom(c), req.profile())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, view)
}

// getPresets handles GET /api/v1/attitude/presets
func (s *Server) getPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"presets": glow.Presets(),
	})
}
