package convert

import (
	"sort"
	"sync"

	"uniconverter/internal/logging"
	"uniconverter/internal/metrics"
)

// Backend is a registered conversion capability.
type Backend interface {
	Name() string
	Available() bool
}

// Registry holds the backends registered at startup.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds b, replacing any backend with the same name.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backends[b.Name()] = b
	logging.Debug("registered backend %s", b.Name())
}

// Lookup returns the backend registered under name.
func (r *Registry) Lookup(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	return b, ok
}

// Available reports whether name is registered and currently usable.
func (r *Registry) Available(name string) bool {
	b, ok := r.Lookup(name)
	if !ok {
		return false
	}
	available := b.Available()
	metrics.BackendAvailable.WithLabelValues(name).Set(boolGauge(available))
	return available
}

// Status reports the availability of every registered backend.
func (r *Registry) Status() map[string]bool {
	r.mu.RLock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	status := make(map[string]bool, len(names))
	for _, name := range names {
		status[name] = r.Available(name)
	}
	return status
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
