package providers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// ErrProviderUnavailable is returned when the requested backend exists but
// failed to initialize (missing or invalid credentials). One misconfigured
// provider must not block requests routed to the others.
var ErrProviderUnavailable = errors.New("provider unavailable")

// ErrProviderUnknown is returned when no backend is registered under the
// requested identifier.
var ErrProviderUnknown = errors.New("unknown provider")

// Registry holds the custody backends keyed by provider identifier and
// tracks which of them initialized successfully.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	available map[string]bool
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		available: make(map[string]bool),
	}
}

// Register adds a backend to the registry. Backends are registered before
// InitializeAll runs; an unregistered provider can never be resolved.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// InitializeAll initializes every registered backend once at startup.
// A backend with missing credentials is skipped, not fatal; initialization
// errors mark the backend unavailable and are logged.
func (r *Registry) InitializeAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, p := range r.providers {
		if err := p.Initialize(ctx); err != nil {
			if errors.Is(err, ErrMissingCredentials) {
				log.Printf("⚠️ Provider %s skipped: credentials not configured", name)
			} else {
				log.Printf("❌ Provider %s failed to initialize: %v", name, err)
			}
			r.available[name] = false
			continue
		}
		r.available[name] = true
		log.Printf("✅ Provider %s initialized", name)
	}
}

// Resolve returns the backend for the given identifier, or a typed error
// when it is unknown or unavailable.
func (r *Registry) Resolve(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnknown, name)
	}
	if !r.available[name] {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, name)
	}
	return p, nil
}

// Names returns the identifiers of all registered backends.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// HealthReport probes credentials of every registered backend. Used by the
// admin surface; probe failures are reported, never raised.
func (r *Registry) HealthReport(ctx context.Context) map[string]*CredentialCheck {
	r.mu.RLock()
	providers := make(map[string]Provider, len(r.providers))
	for name, p := range r.providers {
		providers[name] = p
	}
	r.mu.RUnlock()

	report := make(map[string]*CredentialCheck, len(providers))
	for name, p := range providers {
		report[name] = p.ValidateCredentials(ctx)
	}
	return report
}
