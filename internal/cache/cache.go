// Package cache keeps personalized conversations close to the API so repeat
// views skip the database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/chatlings/pkg/models"
)

// ConversationCache stores personalized conversations by (user, base id)
type ConversationCache interface {
	Get(ctx context.Context, userID string, baseID int64) (*models.PersonalizedConversation, bool, error)
	Set(ctx context.Context, pc *models.PersonalizedConversation) error
}

// Noop never hits; used when Redis is not configured
type Noop struct{}

func (Noop) Get(ctx context.Context, userID string, baseID int64) (*models.PersonalizedConversation, bool, error) {
	return nil, false, nil
}

func (Noop) Set(ctx context.Context, pc *models.PersonalizedConversation) error { return nil }

// Options configures the Redis cache
type Options struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
	Prefix   string        `koanf:"prefix"`
}

type Redis struct {
	rdb    *goredis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis connects and pings; the caller owns Close
func NewRedis(ctx context.Context, opts Options) (*Redis, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisWithClient(rdb, opts), nil
}

func NewRedisWithClient(rdb *goredis.Client, opts Options) *Redis {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "chatlings"
	}
	return &Redis{rdb: rdb, ttl: opts.TTL, prefix: prefix}
}

func (r *Redis) key(userID string, baseID int64) string {
	return fmt.Sprintf("%s:pconv:%s:%d", r.prefix, userID, baseID)
}

func (r *Redis) Get(ctx context.Context, userID string, baseID int64) (*models.PersonalizedConversation, bool, error) {
	raw, err := r.rdb.Get(ctx, r.key(userID, baseID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var pc models.PersonalizedConversation
	if err := json.Unmarshal(raw, &pc); err != nil {
		return nil, false, fmt.Errorf("decode cached conversation: %w", err)
	}
	return &pc, true, nil
}

func (r *Redis) Set(ctx context.Context, pc *models.PersonalizedConversation) error {
	raw, err := json.Marshal(pc)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key(pc.UserID, pc.BaseConversationID), raw, r.ttl).Err()
}

func (r *Redis) Close() error { return r.rdb.Close() }
