// Package registry holds the tools registered with the relay, keyed by name.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/toolrelay/toolrelay/internal/schema"
)

// Descriptor describes one registered tool.
type Descriptor struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Schema       *schema.Schema `json:"schema"`
	RegisteredAt time.Time      `json:"registeredAt"`

	// Provider is the peer that executes the tool. Empty for in-process tools.
	Provider string `json:"-"`
}

// Store persists descriptors across restarts.
type Store interface {
	Save(ctx context.Context, d Descriptor) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Descriptor, error)
}

// Registry holds validated tool descriptors. Re-registering a name replaces
// the previous descriptor in place. A provider tool that replaces an
// in-process tool shadows it: removing the provider tool restores the
// in-process one.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Descriptor
	order    []string // first-registration order
	shadowed map[string]Descriptor
	store    Store
	now      func() time.Time

	// storeMu is taken before mu and held until the store write finishes,
	// so the store sees mutations in the order memory did.
	storeMu sync.Mutex
}

// New returns an empty Registry. store may be nil.
func New(store Store) *Registry {
	return &Registry{
		tools:    make(map[string]Descriptor),
		shadowed: make(map[string]Descriptor),
		store:    store,
		now:      time.Now,
	}
}

// Register validates d and stores it, replacing any descriptor with the same
// name. The stored descriptor, with RegisteredAt set, is returned.
func (r *Registry) Register(ctx context.Context, d Descriptor) (Descriptor, error) {
	if strings.TrimSpace(d.Name) == "" {
		return Descriptor{}, newError(CodeInvalidName, "tool name must be a non-empty string")
	}
	if res := schema.ValidateToolSchema(d.Schema); !res.Valid() {
		return Descriptor{}, &Error{Code: CodeInvalidSchema, Message: "invalid tool schema", Details: res.Errors}
	}

	r.storeMu.Lock()
	defer r.storeMu.Unlock()

	r.mu.Lock()
	d.RegisteredAt = r.now().UTC()
	prev, exists := r.tools[d.Name]
	switch {
	case !exists:
		r.order = append(r.order, d.Name)
	case d.Provider == "":
		delete(r.shadowed, d.Name)
	case prev.Provider == "":
		r.shadowed[d.Name] = prev
	}
	r.tools[d.Name] = d
	r.mu.Unlock()

	if r.store != nil && d.Provider != "" {
		if err := r.store.Save(ctx, d); err != nil {
			slog.Warn("registry: persist failed", "tool", d.Name, "err", err)
		}
	}
	return d, nil
}

// Unregister removes the named tool, returning the removed descriptor.
func (r *Registry) Unregister(ctx context.Context, name string) (Descriptor, bool) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()

	r.mu.Lock()
	d, ok := r.removeLocked(name)
	r.mu.Unlock()

	if ok {
		r.forget(ctx, d)
	}
	return d, ok
}

// UnregisterIf removes the named tool when allow accepts its current
// descriptor. allow runs under the registry lock and must not call back into
// the Registry; its error is returned unchanged.
func (r *Registry) UnregisterIf(ctx context.Context, name string, allow func(Descriptor) error) (Descriptor, error) {
	r.storeMu.Lock()
	defer r.storeMu.Unlock()

	r.mu.Lock()
	d, ok := r.tools[name]
	if !ok {
		r.mu.Unlock()
		return Descriptor{}, newError(CodeNotFound, fmt.Sprintf("tool %q not found", name))
	}
	if err := allow(d); err != nil {
		r.mu.Unlock()
		return Descriptor{}, err
	}
	r.removeLocked(name)
	r.mu.Unlock()

	r.forget(ctx, d)
	return d, nil
}

// UnregisterProvider removes every tool supplied by provider. A removed name
// that shadowed an in-process tool resolves to that tool again.
func (r *Registry) UnregisterProvider(ctx context.Context, provider string) []Descriptor {
	if provider == "" {
		return nil
	}

	r.storeMu.Lock()
	defer r.storeMu.Unlock()

	r.mu.Lock()
	var removed []Descriptor
	for _, name := range append([]string(nil), r.order...) {
		if r.tools[name].Provider != provider {
			continue
		}
		d, _ := r.removeLocked(name)
		removed = append(removed, d)
	}
	r.mu.Unlock()

	for _, d := range removed {
		r.forget(ctx, d)
	}
	return removed
}

// removeLocked drops name, or puts back the in-process tool it shadowed.
func (r *Registry) removeLocked(name string) (Descriptor, bool) {
	d, ok := r.tools[name]
	if !ok {
		return Descriptor{}, false
	}
	if prev, shadowing := r.shadowed[name]; shadowing && d.Provider != "" {
		delete(r.shadowed, name)
		r.tools[name] = prev
		return d, true
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return d, true
}

func (r *Registry) forget(ctx context.Context, d Descriptor) {
	if r.store == nil || d.Provider == "" {
		return
	}
	if err := r.store.Delete(ctx, d.Name); err != nil {
		slog.Warn("registry: delete failed", "tool", d.Name, "err", err)
	}
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// List returns a snapshot of all descriptors in first-registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Load seeds the registry from the store. Stored descriptors keep their
// original RegisteredAt; invalid ones are skipped.
func (r *Registry) Load(ctx context.Context) (int, error) {
	if r.store == nil {
		return 0, nil
	}
	r.storeMu.Lock()
	defer r.storeMu.Unlock()

	stored, err := r.store.List(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, d := range stored {
		if d.Name == "" || !schema.ValidateToolSchema(d.Schema).Valid() {
			slog.Warn("registry: skipping invalid stored tool", "tool", d.Name)
			continue
		}
		if _, exists := r.tools[d.Name]; exists {
			continue
		}
		r.order = append(r.order, d.Name)
		r.tools[d.Name] = d
		n++
	}
	return n, nil
}
