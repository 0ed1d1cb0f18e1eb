package storeinfra

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// scanBatch is the COUNT hint for SCAN-based sweeps.
const scanBatch = 200

// RedisConfig holds the configuration for the redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int

	// KeyPrefix namespaces every key this store touches, so several caches
	// can share one database.
	KeyPrefix string

	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// DefaultRedisConfig returns a RedisConfig pointing at a local instance.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:      "localhost:6379",
		PoolSize:  10,
		KeyPrefix: "cds-caching:",
	}
}

// Validate checks the configuration values.
func (c RedisConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.PoolSize, validation.Min(0)),
		validation.Field(&c.DialTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ReadTimeout, validation.Min(time.Duration(0))),
	)
}

// RedisStore is the remote adapter. Entries travel msgpack-encoded and TTLs
// map directly onto redis expirations, so redis owns all expiry housekeeping.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore validates the configuration, connects, and pings the server.
func NewRedisStore(cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: logger.With(zap.String("component", "redis-store")),
	}, nil
}

// Get returns the entry for key. A missing key is absence, not an error.
func (s *RedisStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Set stores the entry. A zero ttl stores without expiration.
func (s *RedisStore) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Has reports whether an entry exists for key.
func (s *RedisStore) Has(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", key, err)
	}
	return count > 0, nil
}

// Clear deletes every key under this store's prefix. Keys outside the
// prefix are untouched.
func (s *RedisStore) Clear(ctx context.Context) error {
	return s.sweep(ctx, func(ctx context.Context, redisKey string) (bool, error) {
		return true, nil
	})
}

// DeleteByTag scans entries under the prefix and deletes those carrying the
// tag. Entries that fail to decode are skipped, not deleted.
func (s *RedisStore) DeleteByTag(ctx context.Context, tag string) error {
	return s.sweep(ctx, func(ctx context.Context, redisKey string) (bool, error) {
		data, err := s.client.Get(ctx, redisKey).Bytes()
		if err == redis.Nil {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("redis get %s: %w", redisKey, err)
		}
		entry, err := decodeEntry(data)
		if err != nil {
			s.logger.Warn("skipping undecodable entry", zap.String("key", redisKey), zap.Error(err))
			return false, nil
		}
		for _, t := range entry.Tags {
			if t == tag {
				return true, nil
			}
		}
		return false, nil
	})
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// sweep walks every key under the prefix and deletes those the match
// function selects.
func (s *RedisStore) sweep(ctx context.Context, match func(ctx context.Context, redisKey string) (bool, error)) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", scanBatch).Iterator()

	var doomed []string
	for iter.Next(ctx) {
		redisKey := iter.Val()
		selected, err := match(ctx, redisKey)
		if err != nil {
			return err
		}
		if selected {
			doomed = append(doomed, redisKey)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}

	if len(doomed) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, doomed...).Err(); err != nil {
		return fmt.Errorf("redis delete batch: %w", err)
	}
	return nil
}
