// Package events fans values out to channel subscribers.
package events

import (
	"sync"
)

// DefaultBuffer is the channel capacity given to each subscriber.
const DefaultBuffer = 10

// Broadcaster delivers published values to every subscriber without
// blocking. A subscriber whose buffer is full misses the value.
type Broadcaster[T any] struct {
	mu        sync.RWMutex
	listeners []chan T
	buffer    int
	closed    bool
}

// NewBroadcaster creates a broadcaster whose subscriber channels hold
// buffer values. A non-positive buffer uses DefaultBuffer.
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster[T]{buffer: buffer}
}

// Subscribe adds a listener. The channel is closed by Unsubscribe or Close.
func (b *Broadcaster[T]) Subscribe() chan T {
	ch := make(chan T, b.buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// Unsubscribe removes a listener and closes its channel. It reports
// whether ch was subscribed.
func (b *Broadcaster[T]) Unsubscribe(ch chan T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return true
		}
	}
	return false
}

// Publish sends v to all listeners.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.listeners {
		select {
		case ch <- v:
		default:
			// Listener is slow, skip
		}
	}
}

// Len returns the number of listeners.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close closes every listener channel. Later subscribers receive an
// already closed channel.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.listeners {
		close(ch)
	}
	b.listeners = nil
}
