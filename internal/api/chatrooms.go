package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/pkg/models"
)

type attitudeRequest struct {
	Enthusiasm int `json:"enthusiasm"`
	Criticism  int `json:"criticism"`
	Humor      int `json:"humor"`
}

func (r attitudeRequest) profile() models.AttitudeProfile {
	return models.AttitudeProfile{Enthusiasm: r.Enthusiasm, Criticism: r.Criticism, Humor: r.Humor}
}

type participateRequest struct {
	attitudeRequest
	ChatlingID string `json:"chatling_id"`
}

// parseLimit reads ?limit, falling back to def for missing or invalid values
func parseLimit(c echo.Context, def, max int) int {
	limit := def
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= max {
			limit = parsed
		}
	}
	return limit
}

func chatroomID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, toHTTPError(apperr.Validation(apperr.CodeMissingField, "invalid chatroom id"))
	}
	return id, nil
}

// getUpcomingChatrooms handles GET /api/v1/chatrooms/upcoming
func (s *Server) getUpcomingChatrooms(c echo.Context) error {
	rooms, err := s.deps.Chatrooms.GetUpcomingSchedules(c.Request().Context(), parseLimit(c, 10, 50))
	if err != nil {
		return toHTTPError(err)
	}
	if rooms == nil {
		rooms = make([]*models.ChatroomSchedule, 0)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"chatrooms": rooms,
		"count":     len(rooms),
	})
}

// getActiveChatroom handles GET /api/v1/chatrooms/active
func (s *Server) getActiveChatroom(c echo.Context) error {
	room, err := s.deps.Chatrooms.GetActiveSchedule(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"active":   room != nil,
		"chatroom": room,
	})
}

// getChatroomByID handles GET /api/v1/chatrooms/:id
func (s *Server) getChatroomByID(c echo.Context) error {
	id, err := chatroomID(c)
	if err != nil {
		return err
	}
	room, err := s.deps.Chatrooms.GetScheduleByID(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, room)
}

// participate handles POST /api/v1/chatrooms/:id/participate
func (s *Server) participate(c echo.Context) error {
	id, err := chatroomID(c)
	if err != nil {
		return err
	}
	var req participateRequest
	if err := c.Bind(&req); err != nil {
		return toHTTPError(apperr.Validation(apperr.CodeMissingField, "invalid request body"))
	}

	rec, err := s.deps.Chatrooms.Participate(c.Request().Context(), userFrom(c), id, req.ChatlingID, req.profile())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"participation": rec,
		"glow_earned":   rec.RewardEarned,
	})
}

// previewReward handles POST /api/v1/chatrooms/:id/preview
func (s *Server) previewReward(c echo.Context) error {
	id, err := chatroomID(c)
	if err != nil {
		return err
	}
	var req attitudeRequest
	if err := c.Bind(&req); err != nil {
		return toHTTPError(apperr.Validation(apperr.CodeMissingField, "invalid request body"))
	}

	preview, err := s.deps.Chatrooms.PreviewReward(c.Request().Context(), userFrom(c), id, req.profile())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, preview)
}

// getParticipations handles GET /api/v1/chatrooms/participations
func (s *Server) getParticipations(c echo.Context) error {
	recs, err := s.deps.Chatrooms.ListParticipations(c.Request().Context(), userFrom(c), parseLimit(c, 20, 100))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"participations": recs,
		"count":          len(recs),
	})
}
