package relay

import (
	"fmt"
	"sync"
)

// Registry collects action descriptors and named middlewares during process
// initialization. Mounting freezes the registry; from then on it is
// read-only and safe for unsynchronized concurrent reads.
type Registry struct {
	mu          sync.RWMutex
	actions     []*Action
	middlewares map[string]Middleware
	frozen      bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		middlewares: make(map[string]Middleware),
	}
}

// Register adds actions to the registry. Registering after the registry has
// been mounted returns ErrRegistryFrozen.
func (r *Registry) Register(actions ...*Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	for _, a := range actions {
		if a == nil {
			return fmt.Errorf("relay: cannot register a nil action")
		}
		r.actions = append(r.actions, a)
	}
	return nil
}

// RegisterController builds the controller and registers its actions.
func (r *Registry) RegisterController(cb *ControllerBuilder) error {
	actions, err := cb.Build()
	if err != nil {
		return err
	}
	return r.Register(actions...)
}

// RegisterMiddleware adds a named middleware usable from action Before and
// After lists.
func (r *Registry) RegisterMiddleware(name string, mw Middleware) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return ErrRegistryFrozen
	}
	if mw == nil {
		return fmt.Errorf("relay: middleware %q is nil", name)
	}
	r.middlewares[name] = mw
	return nil
}

// Middleware retrieves a named middleware.
func (r *Registry) Middleware(name string) (Middleware, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mw, ok := r.middlewares[name]
	return mw, ok
}

// Actions returns a copy of all registered actions.
func (r *Registry) Actions() []*Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Action(nil), r.actions...)
}

// ActionsByMethod returns actions filtered by HTTP method.
func (r *Registry) ActionsByMethod(method string) []*Action {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var filtered []*Action
	for _, a := range r.actions {
		if a.Method == method {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// Freeze marks the registry read-only. Called by the dispatcher before
// routes are handed to a driver.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether the registry has been frozen.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// DefaultRegistry is the global registry used by the package-level
// convenience functions.
var DefaultRegistry = NewRegistry()

// Register adds actions to the default registry.
func Register(actions ...*Action) error {
	return DefaultRegistry.Register(actions...)
}

// RegisterController builds the controller into the default registry.
func RegisterController(cb *ControllerBuilder) error {
	return DefaultRegistry.RegisterController(cb)
}

// RegisterMiddleware adds a named middleware to the default registry.
func RegisterMiddleware(name string, mw Middleware) error {
	return DefaultRegistry.RegisterMiddleware(name, mw)
}
