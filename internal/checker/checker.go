// Package checker implements the subscribable checker (C3): a single
// monitored service's spec plus its bounded history, wrapped so that
// every mutation broadcasts exactly one matching message. Fields stay
// unexported so nothing outside this package can change state without
// going through a mutator.
package checker

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adred-codev/swec/internal/broadcast"
	"github.com/adred-codev/swec/internal/ringbuffer"
	"github.com/adred-codev/swec/internal/watcher"
)

// Checker pairs a Spec with a bounded TimestampedStatus history and a
// broadcast endpoint for CheckerMessage. The zero value is not usable;
// construct with New.
type Checker struct {
	spec    watcher.Spec
	history *ringbuffer.RingBuffer[watcher.TimestampedStatus]
	bus     *broadcast.Broadcaster[watcher.CheckerMessage]
	log     zerolog.Logger
}

// New creates a checker with an empty history of the given capacity.
func New(spec watcher.Spec, historyLength int, bufferSize int, logger *zerolog.Logger) *Checker {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Checker{
		spec:    spec,
		history: ringbuffer.New[watcher.TimestampedStatus](historyLength),
		bus:     broadcast.New[watcher.CheckerMessage](bufferSize),
		log:     l,
	}
}

// Restore reconstructs a checker from a persisted spec and history, as
// read back from a dump at startup. The reconstructed history's
// capacity equals its length, matching ring buffer deserialization
// semantics; callers reconcile it against the configured history
// length afterwards via Resize or TruncateFIFO.
func Restore(spec watcher.Spec, history []watcher.TimestampedStatus, bufferSize int, logger *zerolog.Logger) *Checker {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	rb := ringbuffer.New[watcher.TimestampedStatus](len(history))
	rb.PushMany(history)
	return &Checker{
		spec:    spec,
		history: rb,
		bus:     broadcast.New[watcher.CheckerMessage](bufferSize),
		log:     l,
	}
}

// Spec returns a copy of the current spec.
func (c *Checker) Spec() watcher.Spec {
	return c.spec
}

// History returns the current status history, oldest first.
func (c *Checker) History() []watcher.TimestampedStatus {
	return c.history.All()
}

// LastStatus returns the most recent status, if any.
func (c *Checker) LastStatus() (watcher.TimestampedStatus, bool) {
	n := c.history.Len()
	if n == 0 {
		var zero watcher.TimestampedStatus
		return zero, false
	}
	return c.history.At(n - 1)
}

// Resize reconciles the history capacity against a new history_length,
// rejecting shrinkage (see ringbuffer.Resize).
func (c *Checker) Resize(newCap int) error {
	return c.history.Resize(newCap)
}

// TruncateFIFO reconciles the history capacity against a new
// history_length, evicting the oldest entries if needed to shrink.
func (c *Checker) TruncateFIFO(newCap int) {
	c.history.TruncateFIFO(newCap)
}

// UpdateSpec replaces the spec and broadcasts UpdatedSpec.
func (c *Checker) UpdateSpec(spec watcher.Spec) {
	c.spec = spec
	c.publish(watcher.NewCheckerUpdatedSpec(spec))
}

// AddStatus assigns the current time as the observation's timestamp,
// pushes it into the history (evicting the oldest entry if full), then
// broadcasts AddedStatus.
func (c *Checker) AddStatus(status watcher.Status) watcher.TimestampedStatus {
	ts := watcher.TimestampedStatus{Time: time.Now(), Status: status}
	c.history.Push(ts)
	c.publish(watcher.NewCheckerAddedStatus(ts))
	return ts
}

// Subscribe returns a fresh receiver bound to the current moment. The
// caller is responsible for holding whatever lock this checker lives
// behind so the returned subscription and any Initial frame built from
// Spec/LastStatus are consistent with each other.
func (c *Checker) Subscribe() *broadcast.Subscription[watcher.CheckerMessage] {
	return c.bus.Subscribe()
}

// Drop broadcasts CheckerDropped and tears down the broadcast endpoint.
// Called by the registry when this checker is removed.
func (c *Checker) Drop() {
	c.publish(watcher.NewCheckerDropped())
	c.bus.Close()
}

func (c *Checker) publish(msg watcher.CheckerMessage) {
	c.bus.Publish(msg)
	c.log.Debug().Interface("message", msg).Msg("checker broadcast")
}
