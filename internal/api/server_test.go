package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlings/internal/apperr"
	"github.com/chatlings/internal/chatroom"
	"github.com/chatlings/internal/conversation"
	"github.com/chatlings/internal/customizer"
	"github.com/chatlings/internal/ledger"
	"github.com/chatlings/internal/personalization"
	"github.com/chatlings/internal/roster"
	"github.com/chatlings/internal/schedule"
	"github.com/chatlings/pkg/models"
)

var testNow = time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)

type fakeQueue struct {
	limits []int
}

func (q *fakeQueue) QueueConversationBatch(ctx context.Context, limit int) error {
	q.limits = append(q.limits, limit)
	return nil
}

type fixture struct {
	server  *Server
	queue   *fakeQueue
	openID  int64
	laterID int64
}

func newFixture(t *testing.T, withQueue bool) *fixture {
	t.Helper()
	ctx := context.Background()

	store := schedule.NewInMemoryStore()
	mk := func(open time.Time, status models.ScheduleStatus) *models.ChatroomSchedule {
		return &models.ChatroomSchedule{
			Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), OpenTime: open, CloseTime: open.Add(time.Hour),
			NotificationTime: open.Add(-2 * time.Hour), ReminderTime: open.Add(-15 * time.Minute), Status: status,
		}
	}
	open := mk(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), models.StatusOpen)
	later := mk(time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC), models.StatusScheduled)
	require.NoError(t, store.CreateBatch(ctx, []*models.ChatroomSchedule{open, later}))

	schedules := schedule.NewService(store, nil).WithClock(func() time.Time { return testNow })
	for _, id := range []int64{open.ID, later.ID} {
		_, err := schedules.AssignContent(ctx, id, models.ContentMetadata{ExternalID: "vid", Title: "Live concert", Category: "Music"})
		require.NoError(t, err)
	}

	team := roster.NewInMemoryStore()
	team.Add("u1", models.RosterMember{ID: "r1", Name: "Blip"})
	glowLedger := ledger.NewInMemoryLedger()

	convs := conversation.NewInMemoryStore()
	require.NoError(t, convs.Create(ctx, &models.BaseConversation{
		ContentID: "new", ContentTitle: "New video", TotalCommentCount: 1, GenerationCostUnits: 0.002,
		Forest: []*models.CommentNode{models.NewCommentNode("n1", "Great stuff", models.SentimentPositive)},
	}))
	views := personalization.NewInMemoryStore()

	deps := Deps{
		Chatrooms:       chatroom.NewService(schedules, chatroom.NewInMemoryStore(), team, glowLedger),
		Personalization: personalization.NewService(convs, views, views, team, glowLedger, customizer.New()),
		Conversations:   convs,
	}
	f := &fixture{openID: open.ID, laterID: later.ID}
	if withQueue {
		f.queue = &fakeQueue{}
		deps.Batches = f.queue
	}
	f.server = NewServer(0, deps, nil)
	return f
}

func (f *fixture) do(t *testing.T, method, path, user, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, false)
	rec, body := f.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestRequireUser(t *testing.T) {
	f := newFixture(t, false)
	rec, body := f.do(t, http.MethodGet, "/api/v1/attitude", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing_user", body["error"])
}

func TestAttitudeEndpoints(t *testing.T) {
	f := newFixture(t, false)

	rec, body := f.do(t, http.MethodGet, "/api/v1/attitude", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["is_default"])
	assert.EqualValues(t, 5, body["enthusiasm"])

	rec, body = f.do(t, http.MethodPut, "/api/v1/attitude", "u1", `{"enthusiasm":11,"criticism":5,"humor":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.CodeInvalidAttitude, body["error"])

	rec, body = f.do(t, http.MethodPut, "/api/v1/attitude", "u1", `{"enthusiasm":2,"criticism":9,"humor":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "skeptical", body["attitude_type"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/attitude/presets", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["presets"], 6)
}

func TestChatroomEndpoints(t *testing.T) {
	f := newFixture(t, false)

	rec, body := f.do(t, http.MethodGet, "/api/v1/chatrooms/upcoming", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/chatrooms/active", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["active"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/chatrooms/999", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeChatroomNotFound, body["error"])

	rec, _ = f.do(t, http.MethodGet, "/api/v1/chatrooms/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := fmt.Sprintf("/api/v1/chatrooms/%d/participate", f.openID)
	attempt := `{"chatling_id":"r1","enthusiasm":9,"criticism":2,"humor":8}`
	rec, body = f.do(t, http.MethodPost, path, "u1", attempt)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 8, body["glow_earned"])

	rec, body = f.do(t, http.MethodPost, path, "u1", attempt)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperr.CodeAlreadyParticipated, body["error"])

	rec, body = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/chatrooms/%d/participate", f.laterID), "u1", attempt)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperr.CodeChatroomNotOpenYet, body["error"])

	rec, body = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/chatrooms/%d/preview", f.laterID), "u1", `{"enthusiasm":9,"criticism":2,"humor":8}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 8, body["estimated_glow"])
	assert.NotEmpty(t, body["hint"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/chatrooms/participations", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])
}

func TestConversationEndpoints(t *testing.T) {
	f := newFixture(t, false)

	rec, body := f.do(t, http.MethodGet, "/api/v1/conversations/personalized?video_id=new", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, body["glow_impact"])
	assert.Equal(t, false, body["from_cache"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/conversations/personalized", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["from_cache"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/conversations/personalized?video_id=gone", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperr.CodeContentNotFound, body["error"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/conversations/personalized", "nobody", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.CodeNoRoster, body["error"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/conversations/history", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total_conversations"])
	assert.EqualValues(t, 2, body["total_glow"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/conversations", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["count"])

	rec, body = f.do(t, http.MethodGet, "/api/v1/conversations/stats", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total_conversations"])
}

func TestQueueBatch(t *testing.T) {
	rec, _ := newFixture(t, false).do(t, http.MethodPost, "/api/v1/conversations/batch", "", `{"limit":3}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	f := newFixture(t, true)
	rec, body := f.do(t, http.MethodPost, "/api/v1/conversations/batch", "", `{"limit":3}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "queued", body["status"])
	assert.Equal(t, []int{3}, f.queue.limits)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Validation(apperr.CodeMissingField, "x"), http.StatusBadRequest},
		{apperr.NotFound(apperr.CodeContentNotFound, "x"), http.StatusNotFound},
		{apperr.Conflict(apperr.CodeChatroomClosed, "x"), http.StatusConflict},
		{apperr.Provider(errors.New("upstream")), http.StatusBadGateway},
		{apperr.Persistence(errors.New("disk")), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", apperr.NotFound(apperr.CodeChatroomNotFound, "x")), http.StatusNotFound},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	e := echo.New()
	handle := errorHandler(e)
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		handle(toHTTPError(tt.err), c)
		assert.Equal(t, tt.want, rec.Code, tt.err.Error())
		assert.NotContains(t, rec.Body.String(), "disk")
	}
}
