// Package anchors records the last reported layout of named UI elements.
package anchors

import (
	"sync"

	"github.com/patrickwarner/surfacekit/internal/models"
	"github.com/patrickwarner/surfacekit/internal/observable"
)

// Registry maps anchor names to their most recent layout. Any goroutine may
// write; the last write per name wins.
type Registry struct {
	mu       sync.RWMutex
	rects    map[string]models.LayoutRect
	notifier *observable.Notifier
}

func NewRegistry() *Registry {
	return &Registry{
		rects:    make(map[string]models.LayoutRect),
		notifier: observable.NewNotifier(),
	}
}

// OnLayout records a completed layout pass for name. Subscribers are only
// signalled when the rectangle actually changed.
func (r *Registry) OnLayout(name string, rect models.LayoutRect) {
	if name == "" {
		return
	}
	r.mu.Lock()
	prev, ok := r.rects[name]
	r.rects[name] = rect
	r.mu.Unlock()

	if !ok || prev != rect {
		r.notifier.Notify()
	}
}

// Remove forgets name, e.g. when its element leaves the composition.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	_, ok := r.rects[name]
	delete(r.rects, name)
	r.mu.Unlock()

	if ok {
		r.notifier.Notify()
	}
}

func (r *Registry) Get(name string) (models.LayoutRect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rect, ok := r.rects[name]
	return rect, ok
}

// Snapshot returns a copy of the current mapping.
func (r *Registry) Snapshot() map[string]models.LayoutRect {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]models.LayoutRect, len(r.rects))
	for k, v := range r.rects {
		out[k] = v
	}
	return out
}

// Len returns the number of known anchors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rects)
}

// Subscribe delivers a coalesced signal after every change.
func (r *Registry) Subscribe() (<-chan struct{}, func()) {
	return r.notifier.Subscribe()
}
