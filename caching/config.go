package caching

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/uxkjaer/cds-caching/internal/storeinfra"
)

// StoreKind selects the backend adapter a Config builds.
type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreRedis  StoreKind = "redis"
)

// Duration is a time.Duration that unmarshals from YAML either as a Go
// duration string ("5m", "90s") or as a bare number of seconds.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var seconds int64
	if err := node.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config selects and configures a backend store, the statistics flags, and
// the default per-call TTL.
type Config struct {
	Store      StoreKind        `yaml:"store"`
	DefaultTTL Duration         `yaml:"defaultTTL"`
	Memory     MemoryConfig     `yaml:"memory"`
	Redis      RedisConfig      `yaml:"redis"`
	Statistics StatisticsConfig `yaml:"statistics"`
}

// MemoryConfig exposes the in-process store options for consumers of the
// caching package.
type MemoryConfig struct {
	Capacity             int                 `yaml:"capacity"`
	NumShards            int                 `yaml:"numShards"`
	TTL                  Duration            `yaml:"ttl"`
	EvictionPercentage   int                 `yaml:"evictionPercentage"`
	EarlyRefresh         *EarlyRefreshConfig `yaml:"earlyRefresh"`
	MissingRecordStorage bool                `yaml:"missingRecordStorage"`
	EvictionInterval     Duration            `yaml:"evictionInterval"`
}

// EarlyRefreshConfig mirrors the underlying store's early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime Duration `yaml:"minAsyncRefreshTime"`
	MaxAsyncRefreshTime Duration `yaml:"maxAsyncRefreshTime"`
	SyncRefreshTime     Duration `yaml:"syncRefreshTime"`
	RetryBaseDelay      Duration `yaml:"retryBaseDelay"`
}

// RedisConfig exposes the remote store options.
type RedisConfig struct {
	Addr        string   `yaml:"addr"`
	Password    string   `yaml:"password"`
	DB          int      `yaml:"db"`
	PoolSize    int      `yaml:"poolSize"`
	KeyPrefix   string   `yaml:"keyPrefix"`
	DialTimeout Duration `yaml:"dialTimeout"`
	ReadTimeout Duration `yaml:"readTimeout"`
}

// DefaultConfig returns a Config populated with sensible defaults: the
// in-process store, statistics on, per-key tracking off, no default TTL.
func DefaultConfig() Config {
	return Config{
		Store:      StoreMemory,
		Memory:     memoryFromInternal(storeinfra.DefaultMemoryConfig()),
		Redis:      redisFromInternal(storeinfra.DefaultRedisConfig()),
		Statistics: StatisticsConfig{Enabled: true},
	}
}

// LoadConfig reads a YAML config file over the defaults and validates the
// result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration, including the block selected by Store.
func (c Config) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Store, validation.Required, validation.In(StoreMemory, StoreRedis)),
		validation.Field(&c.DefaultTTL, validation.Min(Duration(0))),
	); err != nil {
		return err
	}

	switch c.Store {
	case StoreMemory:
		return c.Memory.toInternal().Validate()
	case StoreRedis:
		return c.Redis.toInternal().Validate()
	}
	return nil
}

// NewStore constructs the backend selected by the configuration. The logger
// is used by adapters that log; it may be nil.
func NewStore(cfg Config, logger *zap.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Store {
	case StoreRedis:
		inner, err := storeinfra.NewRedisStore(cfg.Redis.toInternal(), logger)
		if err != nil {
			return nil, err
		}
		return &storeBridge{inner: inner}, nil
	default:
		inner, err := storeinfra.NewMemoryStore(cfg.Memory.toInternal())
		if err != nil {
			return nil, err
		}
		return &storeBridge{inner: inner}, nil
	}
}

func (c MemoryConfig) toInternal() storeinfra.MemoryConfig {
	var early *storeinfra.EarlyRefreshConfig
	if c.EarlyRefresh != nil {
		early = &storeinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime.Std(),
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime.Std(),
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime.Std(),
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay.Std(),
		}
	}

	return storeinfra.MemoryConfig{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL.Std(),
		EvictionPercentage:   c.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval.Std(),
	}
}

func memoryFromInternal(cfg storeinfra.MemoryConfig) MemoryConfig {
	var early *EarlyRefreshConfig
	if cfg.EarlyRefresh != nil {
		early = &EarlyRefreshConfig{
			MinAsyncRefreshTime: Duration(cfg.EarlyRefresh.MinAsyncRefreshTime),
			MaxAsyncRefreshTime: Duration(cfg.EarlyRefresh.MaxAsyncRefreshTime),
			SyncRefreshTime:     Duration(cfg.EarlyRefresh.SyncRefreshTime),
			RetryBaseDelay:      Duration(cfg.EarlyRefresh.RetryBaseDelay),
		}
	}

	return MemoryConfig{
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  Duration(cfg.TTL),
		EvictionPercentage:   cfg.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     Duration(cfg.EvictionInterval),
	}
}

func (c RedisConfig) toInternal() storeinfra.RedisConfig {
	return storeinfra.RedisConfig{
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		PoolSize:    c.PoolSize,
		KeyPrefix:   c.KeyPrefix,
		DialTimeout: c.DialTimeout.Std(),
		ReadTimeout: c.ReadTimeout.Std(),
	}
}

func redisFromInternal(cfg storeinfra.RedisConfig) RedisConfig {
	return RedisConfig{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		KeyPrefix:   cfg.KeyPrefix,
		DialTimeout: Duration(cfg.DialTimeout),
		ReadTimeout: Duration(cfg.ReadTimeout),
	}
}

// storeBridge adapts the internal store contract to the public one. The two
// Entry types are structurally identical, so the conversions are direct.
type storeBridge struct {
	inner storeinfra.Store
}

var _ Store = (*storeBridge)(nil)

func (b *storeBridge) Get(ctx context.Context, key string) (Entry, bool, error) {
	entry, found, err := b.inner.Get(ctx, key)
	return Entry(entry), found, err
}

func (b *storeBridge) Set(ctx context.Context, key string, entry Entry, ttl time.Duration) error {
	return b.inner.Set(ctx, key, storeinfra.Entry(entry), ttl)
}

func (b *storeBridge) Delete(ctx context.Context, key string) error {
	return b.inner.Delete(ctx, key)
}

func (b *storeBridge) Has(ctx context.Context, key string) (bool, error) {
	return b.inner.Has(ctx, key)
}

func (b *storeBridge) Clear(ctx context.Context) error {
	return b.inner.Clear(ctx)
}

func (b *storeBridge) DeleteByTag(ctx context.Context, tag string) error {
	return b.inner.DeleteByTag(ctx, tag)
}

// Close releases backend resources for adapters that hold any. The in-process
// store has nothing to release.
func (b *storeBridge) Close() error {
	if closer, ok := b.inner.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
