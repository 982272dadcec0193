package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/chatlings/internal/aiconnectors"
	"github.com/chatlings/internal/cache"
	"github.com/chatlings/internal/chatroom"
	"github.com/chatlings/internal/config"
	"github.com/chatlings/internal/conversation"
	"github.com/chatlings/internal/customizer"
	"github.com/chatlings/internal/database"
	"github.com/chatlings/internal/jobqueue"
	"github.com/chatlings/internal/ledger"
	"github.com/chatlings/internal/logging"
	"github.com/chatlings/internal/personalization"
	"github.com/chatlings/internal/roster"
	"github.com/chatlings/internal/schedule"
)

// app holds the wired services for one command invocation
type app struct {
	cfg *config.Config
	db  *sql.DB

	conversations   conversation.Store
	source          conversation.ContentSource
	schedules       *schedule.Service
	ticker          *schedule.Ticker
	chatrooms       *chatroom.Service
	personalization *personalization.Service

	redis *cache.Redis
}

// loadConfig reads the --config file and sets up logging
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		if url, err := database.LoadDatabaseURL(); err == nil {
			cfg.Database.URL = url
		}
	}
	logging.Setup(cfg.General.LogLevel, cfg.General.PrettyLogs)
	return cfg, nil
}

// newApp opens the database and wires every store and service that does not
// need the text provider
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is not configured")
	}
	db, err := database.Open(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	genCfg, err := cfg.Schedule.Generator()
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{cfg: cfg, db: db}
	a.conversations = conversation.NewPostgresStore(db)
	a.source = conversation.NewPostgresSource(db)
	a.schedules = schedule.NewService(schedule.NewPostgresStore(db), schedule.NewGenerator(genCfg, nil))
	a.ticker = schedule.NewTicker(a.schedules, nil)

	team := roster.NewPostgresStore(db)
	glowLedger := ledger.NewPostgresLedger(db)
	views := personalization.NewPostgresStore(db)

	a.chatrooms = chatroom.NewService(a.schedules, chatroom.NewPostgresStore(db), team, glowLedger)
	a.personalization = personalization.NewService(a.conversations, views, views, team, glowLedger, customizer.New())

	if cfg.Redis.Addr != "" {
		r, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, serving without conversation cache")
		} else {
			a.redis = r
			a.personalization.WithCache(r)
		}
	}
	return a, nil
}

// batchGenerator connects the text provider and builds a batch runner
func (a *app) batchGenerator(ctx context.Context) (*conversation.BatchGenerator, error) {
	connector, err := aiconnectors.NewConnector(ctx, a.cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to create text provider: %w", err)
	}
	gen := conversation.NewGenerator(connector, a.cfg.Generation)
	return conversation.NewBatchGenerator(gen, a.conversations, a.source, a.cfg.Batch), nil
}

// tasks wires the job queue workers
func (a *app) tasks(batch *conversation.BatchGenerator) jobqueue.Tasks {
	return jobqueue.Tasks{
		Schedules: a.schedules,
		Ticker:    a.ticker,
		Batch:     batch,
		Source:    a.source,
	}
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}
