package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	errspkg "github.com/drblury/alertflow/internal/runtime/errors"
	"github.com/drblury/alertflow/internal/runtime/logging"
)

// Builder creates a store from config.
type Builder func(ctx context.Context, cfg Config, logger logging.ServiceLogger) (Store, error)

// Registry maps backend names to builders.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// DefaultRegistry is the global storage registry.
var DefaultRegistry = NewRegistry()

func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]Builder)}
}

// Register adds a builder. The name matches the STORAGE_BACKEND value.
func (r *Registry) Register(name string, builder Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
}

// Build creates the store selected by cfg.GetStorageBackend().
func (r *Registry) Build(ctx context.Context, cfg Config, logger logging.ServiceLogger) (Store, error) {
	if cfg == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	name := cfg.GetStorageBackend()

	r.mu.RLock()
	builder, ok := r.builders[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: storage %q (registered: %v)", errspkg.ErrUnknownBackend, name, r.Names())
	}
	return builder(ctx, cfg, logger.With(logging.LogFields{"storage": name}))
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.builders[name]
	return ok
}

// Register adds a builder to the default registry.
func Register(name string, builder Builder) {
	DefaultRegistry.Register(name, builder)
}

// Build creates a store using the default registry.
func Build(ctx context.Context, cfg Config, logger logging.ServiceLogger) (Store, error) {
	return DefaultRegistry.Build(ctx, cfg, logger)
}
