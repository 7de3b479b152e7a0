// Package callback implements the pre/post-step user hook registry
// (spec.md §2, §5). Grounded on craft_parts/callbacks.py.
package callback

import (
	"context"
	"sync"

	"github.com/partforge/partforge/internal/errs"
	"github.com/partforge/partforge/internal/step"
)

// Info is passed to every hook.
type Info struct {
	PartName string
	Step     step.Step
}

// Hook is a user-supplied pre/post-step function.
type Hook func(ctx context.Context, info Info) error

// Registry holds the pre- and post-step hook lists. Like the plugin
// registry, it is process-wide, read-only during a run, and must be
// explicitly cleared between runs (spec.md §5).
type Registry struct {
	mu   sync.Mutex
	pre  []registered
	post []registered
}

type registered struct {
	id   string
	hook Hook
}

// NewRegistry returns an empty callback registry.
func NewRegistry() *Registry { return &Registry{} }

// RegisterPre adds a pre-step hook under id. Registering the same id twice
// raises CallbackRegistration.
func (r *Registry) RegisterPre(id string, hook Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.pre {
		if h.id == id {
			return errs.CallbackRegistration(id)
		}
	}
	r.pre = append(r.pre, registered{id: id, hook: hook})
	return nil
}

// RegisterPost adds a post-step hook under id.
func (r *Registry) RegisterPost(id string, hook Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.post {
		if h.id == id {
			return errs.CallbackRegistration(id)
		}
	}
	r.post = append(r.post, registered{id: id, hook: hook})
	return nil
}

// RunPre invokes every registered pre-step hook, in registration order,
// stopping at the first error.
func (r *Registry) RunPre(ctx context.Context, info Info) error {
	r.mu.Lock()
	hooks := append([]registered(nil), r.pre...)
	r.mu.Unlock()
	for _, h := range hooks {
		if err := h.hook(ctx, info); err != nil {
			return err
		}
	}
	return nil
}

// RunPost invokes every registered post-step hook, in registration order,
// stopping at the first error.
func (r *Registry) RunPost(ctx context.Context, info Info) error {
	r.mu.Lock()
	hooks := append([]registered(nil), r.post...)
	r.mu.Unlock()
	for _, h := range hooks {
		if err := h.hook(ctx, info); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every registered hook.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pre = nil
	r.post = nil
}
