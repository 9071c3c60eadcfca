// Package vendorsdk holds the process-local registry of vendor client
// handles. Vendor integrations initialize asynchronously (some never finish),
// so consumers must not assume a handle exists; they poll through a readiness
// gate instead.
package vendorsdk

import "sync"

// Registry maps vendor names to their client handles. Registration may happen
// at any time after startup; lookups before registration simply miss.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]any
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]any)}
}

// Register publishes a vendor client handle. Re-registering replaces the
// previous handle, mirroring a vendor script re-initializing.
func (r *Registry) Register(name string, client any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
}

// Lookup returns the handle for name, if registered.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// Probe returns a readiness probe that reports true once accept approves the
// registered handle. A nil accept only checks presence.
func (r *Registry) Probe(name string, accept func(any) bool) func() bool {
	return func() bool {
		c, ok := r.Lookup(name)
		if !ok {
			return false
		}
		return accept == nil || accept(c)
	}
}
