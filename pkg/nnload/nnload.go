package nnload

// Package nnload knows about our concrete inference runtimes, so that callers can
// just ask for a runtime, and not need to know which ones were compiled in, or
// which of them can actually load on this machine.

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/ovplugin/pkg/config"
	"github.com/cyclopcam/ovplugin/pkg/nn"
	"github.com/cyclopcam/ovplugin/pkg/nnrt"
)

// Factory creates a runtime. It fails if the runtime's native libraries are missing.
type Factory func(log logs.Log, cfg *config.Config) (nnrt.Runtime, error)

type backend struct {
	name     string
	priority int // Higher is tried first
	factory  Factory
}

// Registry is a set of runtime backends
type Registry struct {
	mu       sync.Mutex
	backends []backend
}

// Backends compiled into this binary
var defaultRegistry = &Registry{}

// Register adds a backend to the global registry.
// Backends register themselves from init(), so that build tags decide what is available.
func Register(name string, priority int, factory Factory) {
	defaultRegistry.Register(name, priority, factory)
}

// Names of all backends compiled into this binary, in the order that they are tried
func Backends() []string {
	return defaultRegistry.Backends()
}

// LoadRuntime creates the runtime chosen by cfg.Backend, using the global registry
func LoadRuntime(log logs.Log, cfg *config.Config) (nnrt.Runtime, error) {
	return defaultRegistry.LoadRuntime(log, cfg)
}

func (r *Registry) Register(name string, priority int, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends = slices.DeleteFunc(r.backends, func(b backend) bool { return b.name == name })
	r.backends = append(r.backends, backend{name: name, priority: priority, factory: factory})
	slices.SortStableFunc(r.backends, func(a, b backend) int { return b.priority - a.priority })
}

func (r *Registry) Backends() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.name
	}
	return names
}

// LoadRuntime creates a runtime.
// If cfg.Backend is set, then only that backend is tried. Otherwise we try every
// backend in order of priority, and return the first one that loads.
func (r *Registry) LoadRuntime(log logs.Log, cfg *config.Config) (nnrt.Runtime, error) {
	r.mu.Lock()
	backends := slices.Clone(r.backends)
	r.mu.Unlock()

	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: no inference runtimes compiled in", nn.ErrConfiguration)
	}

	if cfg.Backend != "" {
		for _, b := range backends {
			if b.name == cfg.Backend {
				rt, err := b.factory(log, cfg)
				if err != nil {
					return nil, fmt.Errorf("Failed to load %v: %w", b.name, err)
				}
				log.Infof("Using %v inference runtime", b.name)
				return rt, nil
			}
		}
		return nil, fmt.Errorf("%w: unknown runtime '%v'. Available: %v", nn.ErrConfiguration, cfg.Backend, strings.Join(r.Backends(), ", "))
	}

	var errs []error
	for _, b := range backends {
		rt, err := b.factory(log, cfg)
		if err == nil {
			log.Infof("Using %v inference runtime", b.name)
			return rt, nil
		}
		log.Warnf("Failed to load %v inference runtime: %v", b.name, err)
		errs = append(errs, fmt.Errorf("%v: %w", b.name, err))
	}
	return nil, fmt.Errorf("%w: no inference runtime could be loaded: %w", nn.ErrDevice, errors.Join(errs...))
}
