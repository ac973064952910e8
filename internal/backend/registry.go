package backend

import (
	"errors"
	"fmt"
	"sync"
)

// Registry manages exporter instances.
type Registry struct {
	exporters map[BackendProvider]Exporter
	mu        sync.RWMutex
}

// NewRegistry creates a new exporter registry.
func NewRegistry() *Registry {
	return &Registry{
		exporters: make(map[BackendProvider]Exporter),
	}
}

// Register adds an exporter to the registry.
func (r *Registry) Register(e Exporter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.exporters[e.Provider()]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, e.Provider())
	}

	r.exporters[e.Provider()] = e

	return nil
}

// Get retrieves an exporter by provider.
func (r *Registry) Get(provider BackendProvider) (Exporter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.exporters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, provider)
	}

	return e, nil
}

// Close closes all registered exporters and reports every failure.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, e := range r.exporters {
		if err := e.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
