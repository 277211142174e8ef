package jsonrpc

import (
	"sync"

	"github.com/pmbridge/mediation-server/internal/capability"
)

// MethodRegistry is the default Registry implementation: a flat method-name
// to Handler map plus the server's capability registry. Tool and resource
// implementations call Register once per method during startup wiring.
type MethodRegistry struct {
	mu           sync.RWMutex
	handlers     map[string]Handler
	capabilities *capability.Registry
}

// NewMethodRegistry creates an empty registry bound to the given capability
// registry.
func NewMethodRegistry(capabilities *capability.Registry) *MethodRegistry {
	return &MethodRegistry{
		handlers:     make(map[string]Handler),
		capabilities: capabilities,
	}
}

// Register binds a method name to a Handler. Registering the same name
// twice replaces the previous handler; callers are expected to register
// once at startup, not at request time.
func (r *MethodRegistry) Register(method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// Lookup implements Registry.
func (r *MethodRegistry) Lookup(method string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[method]
	return h, ok
}

// Capabilities implements Registry.
func (r *MethodRegistry) Capabilities() *capability.Registry {
	return r.capabilities
}
