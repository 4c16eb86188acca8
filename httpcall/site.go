package httpcall

import (
	"net/http"
	"sync"
)

// RequestModifier applies site-wide changes to every request of a site,
// such as authentication cookies. It runs after Call.Setup, so its headers
// win over the call's.
type RequestModifier interface {
	ModifyRequest(req *http.Request) error
}

// ModifierFunc adapts a function to RequestModifier.
type ModifierFunc func(req *http.Request) error

// ModifyRequest implements RequestModifier.
func (f ModifierFunc) ModifyRequest(req *http.Request) error {
	return f(req)
}

// Registry maps site identifiers to their RequestModifier. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	modifiers map[string]RequestModifier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{modifiers: make(map[string]RequestModifier)}
}

// Register sets the modifier of site, replacing any previous one.
// A nil modifier removes it.
func (r *Registry) Register(site string, m RequestModifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m == nil {
		delete(r.modifiers, site)
		return
	}
	r.modifiers[site] = m
}

// Lookup returns the modifier of site, if any.
func (r *Registry) Lookup(site string) (RequestModifier, bool) {
	if r == nil || site == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modifiers[site]
	return m, ok
}
