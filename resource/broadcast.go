package resource

import "sync"

// subscriberBuffer is the channel capacity handed to each subscriber.
const subscriberBuffer = 100

// broadcaster fans values out to subscriber channels.
//
// Sends are non-blocking: a subscriber whose buffer is full misses the value
// rather than stalling the publisher. Each subscriber receives its own copy
// made by clone, so no two readers share backing arrays.
type broadcaster[E any] struct {
	mu          sync.RWMutex
	subscribers map[chan E]struct{}
	clone       func(E) E
}

func newBroadcaster[E any](clone func(E) E) *broadcaster[E] {
	return &broadcaster[E]{
		subscribers: make(map[chan E]struct{}),
		clone:       clone,
	}
}

func (b *broadcaster[E]) subscribe() <-chan E {
	ch := make(chan E, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	return ch
}

// unsubscribe removes and closes ch. Unknown or already removed channels are ignored.
func (b *broadcaster[E]) unsubscribe(ch <-chan E) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subCh := range b.subscribers {
		if subCh == ch {
			delete(b.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (b *broadcaster[E]) publish(v E) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- b.clone(v):
		default:
			// subscriber is slow, drop the value
		}
	}
}

func (b *broadcaster[E]) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
