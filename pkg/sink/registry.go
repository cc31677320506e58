package sink

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/logger"
)

// Factory builds a sink from its connection descriptor. Factories must not
// connect; connection happens lazily on first use.
type Factory func(cfg config.SinkConfig) (Sink, error)

var (
	factories = make(map[string]Factory)
	mu        sync.RWMutex
)

// Register makes a sink kind available to Build. Variants call it from init.
func Register(kind string, factory Factory) error {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[kind]; exists {
		return errors.Newf(errors.ErrorTypeConfig, "sink type %s already registered", kind)
	}
	factories[kind] = factory
	return nil
}

// MustRegister is Register for init functions.
func MustRegister(kind string, factory Factory) {
	if err := Register(kind, factory); err != nil {
		panic(err)
	}
}

// Kinds returns the registered sink types, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// New builds one sink.
func New(cfg config.SinkConfig) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mu.RLock()
	factory, exists := factories[cfg.Type]
	mu.RUnlock()

	if !exists {
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown sink type %q", cfg.Type).
			WithDetail("sink", cfg.Name)
	}

	s, err := factory(cfg)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create sink "+cfg.Name)
	}
	return s, nil
}

// Build creates the enabled sinks in configuration order.
func Build(cfgs []config.SinkConfig) ([]Sink, error) {
	sinks := make([]Sink, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.Disabled {
			logger.Get().Info("sink disabled", zap.String("component", "sink_registry"), zap.String("sink", cfg.Name))
			continue
		}
		s, err := New(cfg)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// CloseAll closes every sink and joins the failures.
func CloseAll(ctx context.Context, sinks []Sink) error {
	var errs []error
	for _, s := range sinks {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, errors.Wrap(err, errors.ErrorTypeConnection, "failed to close sink "+s.Name()))
		}
	}
	return errors.Join(errs...)
}
