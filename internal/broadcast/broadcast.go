// Package broadcast implements the fan-out primitive the state facade
// needs: every published message reaches every current subscriber, each
// subscriber has its own bounded buffer, and a subscriber that falls
// behind is told how many messages it missed instead of being blocked on
// or silently desynchronized. Go has no stdlib equivalent of Rust's
// tokio::sync::broadcast, so this is the hand-rolled version the spec's
// design notes call for: a bounded per-subscriber channel plus a
// monotonically incremented drop counter.
package broadcast

import "sync"

// Broadcaster fans a stream of values of type T out to any number of
// subscribers. The zero value is not usable; construct with New.
type Broadcaster[T any] struct {
	mu          sync.Mutex
	subscribers map[*Subscription[T]]struct{}
	bufferSize  int
	closed      bool
}

// Subscription is a single subscriber's view of a Broadcaster. Messages
// that arrive while the subscriber's buffer is full are dropped and
// counted; the count is delivered to the subscriber as a Lagged value
// the next time Recv is called.
type Subscription[T any] struct {
	ch      chan T
	mu      sync.Mutex
	dropped int
}

// New creates a Broadcaster whose subscribers each get a channel of the
// given buffer size.
func New[T any](bufferSize int) *Broadcaster[T] {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Broadcaster[T]{
		subscribers: make(map[*Subscription[T]]struct{}),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber and returns its handle. Callers
// obtain this under whatever exclusive-or-shared lock guards the state
// the broadcaster is announcing changes to, so that the subscription is
// known to see every subsequent Publish call.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription[T]{ch: make(chan T, b.bufferSize)}
	if !b.closed {
		b.subscribers[sub] = struct{}{}
	} else {
		close(sub.ch)
	}
	return sub
}

// Unsubscribe removes a subscriber. Safe to call more than once.
func (b *Broadcaster[T]) Unsubscribe(sub *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub.ch)
	}
}

// Publish delivers msg to every current subscriber. A subscriber whose
// buffer is full does not block the publisher: the message is dropped
// for that subscriber and its drop counter is incremented. This is not
// an error condition — callers should not surface it to the publisher.
func (b *Broadcaster[T]) Publish(msg T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		select {
		case sub.ch <- msg:
		default:
			sub.mu.Lock()
			sub.dropped++
			sub.mu.Unlock()
		}
	}
}

// Close tears down the broadcaster: every subscriber's channel is
// closed and no further Subscribe calls will be honored.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, sub)
	}
}

// Recv blocks until either a message arrives, the subscription is
// closed (ok is false), or there is a pending lag to report. When a
// subscriber missed messages because its buffer overflowed, Recv first
// reports that as (zero, n, true) with lagged > 0, then resumes
// delivering real messages on the next call.
func (s *Subscription[T]) Recv() (msg T, lagged int, ok bool) {
	s.mu.Lock()
	if s.dropped > 0 {
		lagged = s.dropped
		s.dropped = 0
		s.mu.Unlock()
		return msg, lagged, true
	}
	s.mu.Unlock()

	v, open := <-s.ch
	if !open {
		return msg, 0, false
	}
	return v, 0, true
}

// Chan exposes the underlying channel for use in a select statement
// alongside other wake-up sources (e.g. the WebSocket's read-pump done
// signal). Callers using Chan directly are responsible for checking the
// drop counter themselves via TakeLag.
func (s *Subscription[T]) Chan() <-chan T {
	return s.ch
}

// TakeLag atomically reads and resets the pending drop count.
func (s *Subscription[T]) TakeLag() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.dropped
	s.dropped = 0
	return n
}
