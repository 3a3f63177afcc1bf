package coordinator

import (
	"context"
	"sync"

	"github.com/maxg/didit-sub000/internal/types"
)

const monitorBuffer = 32

// Local listeners for build events, keyed by build id
type Registry struct {
	listeners map[types.BuildID]map[*Monitor]struct{}
	mu        sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{listeners: map[types.BuildID]map[*Monitor]struct{}{}}
}

// One listener's view of a build. Detaching it never affects the build itself.
type Monitor struct {
	events   chan types.BuildEvent
	registry *Registry
	id       types.BuildID
}

func (m *Monitor) BuildID() types.BuildID {
	return m.id
}

// Events for the build, ending with a terminal event unless canceled first
func (m *Monitor) Events() <-chan types.BuildEvent {
	return m.events
}

// Stops delivery to this monitor. Safe to call more than once.
func (m *Monitor) Cancel() {
	m.registry.remove(m)
}

// Blocks until the build's terminal event arrives or ctx ends
func (m *Monitor) Wait(ctx context.Context) (types.BuildEvent, error) {
	for {
		select {
		case ev := <-m.events:
			if ev.Terminal() {
				return ev, nil
			}
		case <-ctx.Done():
			return types.BuildEvent{}, ctx.Err()
		}
	}
}

func (r *Registry) Subscribe(id types.BuildID) *Monitor {
	m := &Monitor{
		events:   make(chan types.BuildEvent, monitorBuffer),
		registry: r,
		id:       id,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.listeners[id]
	if !ok {
		set = map[*Monitor]struct{}{}
		r.listeners[id] = set
	}
	set[m] = struct{}{}
	return m
}

func (r *Registry) remove(m *Monitor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.listeners[m.id]
	delete(set, m)
	if len(set) == 0 {
		delete(r.listeners, m.id)
	}
}

// Number of builds with at least one listener
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// Delivers `ev` to every listener of its build without blocking. A terminal event ends the
// stream and detaches all of the build's listeners.
func (r *Registry) Publish(ev types.BuildEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.listeners[ev.BuildID]
	for m := range set {
		if ev.Terminal() {
			// the last slot is kept free for this send
			m.events <- ev
			continue
		}
		if len(m.events) < cap(m.events)-1 {
			m.events <- ev
		}
	}
	if ev.Terminal() {
		delete(r.listeners, ev.BuildID)
	}
}
