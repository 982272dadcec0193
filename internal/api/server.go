package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/chatlings/internal/chatroom"
	"github.com/chatlings/internal/conversation"
	"github.com/chatlings/internal/personalization"
)

// BatchQueuer accepts out-of-schedule conversation batch requests
type BatchQueuer interface {
	QueueConversationBatch(ctx context.Context, limit int) error
}

// Deps are the services the handlers call
type Deps struct {
	Chatrooms       *chatroom.Service
	Personalization *personalization.Service
	Conversations   conversation.Store
	// Batches is optional; without it the batch endpoint answers 503
	Batches BatchQueuer
}

// Server represents the API server
type Server struct {
	echo *echo.Echo
	port int
	deps Deps
}

// NewServer creates a new API server
func NewServer(port int, deps Deps, corsOrigins []string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler(e)

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	if len(corsOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: corsOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	server := &Server{
		echo: e,
		port: port,
		deps: deps,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// API v1 group
	v1 := s.echo.Group("/api/v1")

	// Chatroom endpoints
	rooms := v1.Group("/chatrooms")
	rooms.GET("/upcoming", s.getUpcomingChatrooms)
	rooms.GET("/active", s.getActiveChatroom)
	rooms.GET("/participations", s.getParticipations, requireUser)
	rooms.GET("/:id", s.getChatroomByID)
	rooms.POST("/:id/participate", s.participate, requireUser)
	rooms.POST("/:id/preview", s.previewReward, requireUser)

	// Conversation endpoints
	convs := v1.Group("/conversations")
	convs.GET("", s.listConversations)
	convs.GET("/stats", s.getConversationStats)
	convs.POST("/batch", s.queueBatch)
	convs.GET("/personalized", s.getPersonalizedConversation, requireUser)
	convs.GET("/history", s.getHistory, requireUser)

	// Attitude endpoints
	v1.GET("/attitude/presets", s.getPresets)
	v1.GET("/attitude", s.getAttitude, requireUser)
	v1.PUT("/attitude", s.setAttitude, requireUser)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins the API server and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("API server listening")
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
