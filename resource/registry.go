package resource

import (
	"fmt"
	"sort"
	"sync"
)

// Snapshot is the state of one named store in a [Registry].
type Snapshot[T any] struct {
	Name  string   `json:"name"`
	State State[T] `json:"state"`
}

// clone returns a copy whose state slices do not alias s.
func (s Snapshot[T]) clone() Snapshot[T] {
	return Snapshot[T]{Name: s.Name, State: s.State.clone()}
}

// Registry is a set of named stores with a combined change stream.
//
// Every change of a registered store is published to registry subscribers
// as a [Snapshot]. Registry is safe for concurrent use.
type Registry[T any] struct {
	mu     sync.RWMutex
	stores map[string]*Store[T]

	subs *broadcaster[Snapshot[T]]
}

// NewRegistry creates an empty [Registry].
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		stores: make(map[string]*Store[T]),
		subs:   newBroadcaster(Snapshot[T].clone),
	}
}

// Register adds st under name. Names must be unique.
func (r *Registry[T]) Register(name string, st *Store[T]) error {
	if name == "" {
		return fmt.Errorf("resource: registry name cannot be empty")
	}
	if st == nil {
		return fmt.Errorf("resource: store %q is nil", name)
	}

	r.mu.Lock()
	if _, exists := r.stores[name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("resource: duplicate store name %q", name)
	}
	r.stores[name] = st
	r.mu.Unlock()

	st.OnChange(func(state State[T]) {
		r.subs.publish(Snapshot[T]{Name: name, State: state})
	})
	return nil
}

// Get returns the store registered under name.
func (r *Registry[T]) Get(name string) (*Store[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.stores[name]
	return st, ok
}

// Names returns the registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.stores))
	for name := range r.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the current state of the named store.
func (r *Registry[T]) Snapshot(name string) (Snapshot[T], bool) {
	st, ok := r.Get(name)
	if !ok {
		return Snapshot[T]{}, false
	}
	return Snapshot[T]{Name: name, State: st.State()}, true
}

// Snapshots returns the current state of every store, sorted by name.
func (r *Registry[T]) Snapshots() []Snapshot[T] {
	names := r.Names()
	result := make([]Snapshot[T], 0, len(names))
	for _, name := range names {
		if snap, ok := r.Snapshot(name); ok {
			result = append(result, snap)
		}
	}
	return result
}

// Subscribe returns a channel receiving a [Snapshot] for every change of any
// registered store. Buffered; slow readers miss changes. Call
// [Registry.Unsubscribe] when done.
func (r *Registry[T]) Subscribe() <-chan Snapshot[T] {
	return r.subs.subscribe()
}

// Unsubscribe removes a subscription and closes its channel.
func (r *Registry[T]) Unsubscribe(ch <-chan Snapshot[T]) {
	r.subs.unsubscribe(ch)
}
