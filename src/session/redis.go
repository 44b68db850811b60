package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis: %w", err)
	}
	return client, nil
}

// RedisStore shares mappings between processes. The first writer of a
// session key wins; a losing process adopts the winner's thread.
type RedisStore struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	create CreateFunc
	logger *slog.Logger
	group  singleflight.Group
}

// NewRedisStore creates a store. A zero ttl keeps keys forever; otherwise
// every resolve extends the key's lifetime.
func NewRedisStore(rdb redis.Cmdable, ttl time.Duration, create CreateFunc, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{
		rdb:    rdb,
		ttl:    ttl,
		create: create,
		logger: logger.With("component", "session_redis"),
	}
}

func threadKey(sessionID string) string {
	return fmt.Sprintf("session:%s:thread", sessionID)
}

func (s *RedisStore) Lookup(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrEmptySessionID
	}
	id, err := s.rdb.Get(ctx, threadKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session: %w", err)
	}
	return id, nil
}

func (s *RedisStore) touch(ctx context.Context, key string) {
	if s.ttl <= 0 {
		return
	}
	if ok, err := s.rdb.Expire(ctx, key, s.ttl).Result(); err != nil {
		s.logger.Warn("failed to extend session ttl", "key", key, "error", err)
	} else if !ok {
		s.logger.Warn("session key vanished before ttl refresh", "key", key)
	}
}

func (s *RedisStore) ResolveOrCreate(ctx context.Context, sessionID string) (string, bool, error) {
	id, err := s.Lookup(ctx, sessionID)
	if err != nil {
		return "", false, err
	}
	key := threadKey(sessionID)
	if id != "" {
		s.touch(ctx, key)
		return id, false, nil
	}

	created := false
	v, err, _ := s.group.Do(sessionID, func() (any, error) {
		id, err := createThread(ctx, s.create)
		if err != nil {
			return "", err
		}
		ok, err := s.rdb.SetNX(ctx, key, id, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("failed to store session: %w", err)
		}
		if ok {
			created = true
			return id, nil
		}

		winner, err := s.rdb.Get(ctx, key).Result()
		if err != nil {
			return "", fmt.Errorf("failed to read session: %w", err)
		}
		s.logger.Info("another process created the session thread first", "session_id", sessionID, "orphaned_thread", id)
		return winner, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), created, nil
}
