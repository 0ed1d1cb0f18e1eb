// Package di wires the caching components into ready-to-use singletons.
package di

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/uxkjaer/cds-caching/caching"
	"github.com/uxkjaer/cds-caching/readthrough"
)

// Container holds singleton instances of the cache components: the backend
// store, the statistics recorder, and the read-through coordinator built on
// top of them.
type Container struct {
	config      caching.Config
	logger      *zap.Logger
	store       caching.Store
	recorder    *caching.StatsRecorder
	coordinator *readthrough.Coordinator
}

// NewContainer creates a container from the provided configuration. It builds
// the backend store selected by the config, a statistics recorder with the
// configured flags, and a coordinator wired to both. A nil logger disables
// logging.
func NewContainer(config caching.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := caching.NewStore(config, logger)
	if err != nil {
		return nil, err
	}

	recorder := caching.NewRecorder(config.Statistics)
	coordinator := readthrough.New(store,
		readthrough.WithLogger(logger),
		readthrough.WithRecorder(recorder),
		readthrough.WithDefaultTTL(config.DefaultTTL.Std()),
	)

	return &Container{
		config:      config,
		logger:      logger,
		store:       store,
		recorder:    recorder,
		coordinator: coordinator,
	}, nil
}

// NewContainerWithDefaults creates a container using default configuration.
// This is a convenience constructor for typical use cases where custom
// configuration is not required.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(caching.DefaultConfig(), nil)
}

// NewContainerFromFile loads a YAML configuration file and builds a container
// from it.
func NewContainerFromFile(path string, logger *zap.Logger) (*Container, error) {
	config, err := caching.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return NewContainer(config, logger)
}

// Coordinator returns the singleton read-through coordinator.
func (c *Container) Coordinator() *readthrough.Coordinator {
	return c.coordinator
}

// Store returns the singleton backend store. This allows direct access to the
// cache for advanced use cases such as manual invalidation.
func (c *Container) Store() caching.Store {
	return c.store
}

// Recorder returns the singleton statistics recorder.
func (c *Container) Recorder() *caching.StatsRecorder {
	return c.recorder
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() caching.Config {
	return c.config
}

// Close releases backend resources. It is safe to call on containers whose
// store holds none.
func (c *Container) Close() error {
	if closer, ok := c.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Fetch runs a typed invocation through the container's coordinator.
//
// Since Go methods cannot have type parameters, this is provided as a
// package-level function. Example: di.Fetch[[]Book](ctx, container, rc, inv, load, nil)
func Fetch[T any](ctx context.Context, container *Container, rc caching.RequestContext, inv caching.Invocation, fn func(context.Context) (T, error), opts *caching.Options) (T, readthrough.Result, error) {
	return readthrough.Fetch[T](ctx, container.coordinator, rc, inv, fn, opts)
}
