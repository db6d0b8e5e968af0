package event

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the per-subscriber queue length.
const DefaultBufferSize = 64

// Broker fans events out to subscribers. A subscriber whose queue is full
// misses the event; Emit never waits.
type Broker struct {
	mu      sync.Mutex
	subs    map[uint64]chan Event
	nextID  uint64
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

var _ Emitter = (*Broker)(nil)

// NewBroker returns a Broker with buffer slots per subscriber. A
// non-positive buffer uses DefaultBufferSize.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Broker{subs: make(map[uint64]chan Event), buffer: buffer}
}

// Subscribe registers a subscriber. The returned function unsubscribes
// and closes the channel; calling it more than once is safe. On a closed
// Broker the channel is already closed.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}

// Emit implements Emitter.
func (b *Broker) Emit(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscribers.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber
// was full.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later Emits are no-ops.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
