package storage

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/jwebster45206/journey-engine/pkg/content"
	"github.com/jwebster45206/journey-engine/pkg/storage"
	"github.com/redis/go-redis/v9"
)

// RedisStorage implements storage.Storage on Redis. Users and journeys are
// hashes; conditional writes run as Lua scripts so each is a single atomic
// step on the server.
type RedisStorage struct {
	client  *redis.Client
	logger  *slog.Logger
	retries int
	now     func() time.Time

	mu  sync.Mutex // guards rng
	rng content.Rand
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// Options tunes a RedisStorage. Zero values pick the defaults.
type Options struct {
	PlayerNumberRetries int
	Rand                content.Rand
	Now                 func() time.Time
}

// NewRedisStorage creates a new Redis storage instance. redisURL may be a
// bare host:port or a redis:// URL.
func NewRedisStorage(redisURL string, logger *slog.Logger, opts Options) (*RedisStorage, error) {
	var redisOpts *redis.Options
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		redisOpts = parsed
	} else {
		redisOpts = &redis.Options{Addr: redisURL}
	}

	if opts.PlayerNumberRetries <= 0 {
		opts.PlayerNumberRetries = storage.DefaultPlayerNumberRetries
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &RedisStorage{
		client:  redis.NewClient(redisOpts),
		logger:  logger,
		retries: opts.PlayerNumberRetries,
		now:     opts.Now,
		rng:     opts.Rand,
	}, nil
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

func (r *RedisStorage) nextPlayerNumber() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(r.rng.IntN(storage.MaxPlayerNumber)) + 1
}

func userKey(userID string) string {
	return "user:" + userID
}

func playerKey(playerNumber int64) string {
	return fmt.Sprintf("player:%d", playerNumber)
}

func journeyKey(playerNumber int64, cityID int) string {
	return fmt.Sprintf("journey:%d:%d", playerNumber, cityID)
}

// journeyIndexKey holds the set of city ids a player has journeys for.
func journeyIndexKey(playerNumber int64) string {
	return fmt.Sprintf("journeys:%d", playerNumber)
}
