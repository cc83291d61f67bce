// Package registry implements the subscribable registry (C4): a
// name-ordered map of checkers plus a broadcast endpoint announcing
// membership changes. As with checker, fields stay unexported so every
// membership change goes through a mutator that also broadcasts.
package registry

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adred-codev/swec/internal/broadcast"
	"github.com/adred-codev/swec/internal/checker"
	"github.com/adred-codev/swec/internal/watcher"
)

// Registry is a name→checker map with lexicographic iteration order and
// a broadcast endpoint for ListMessage. It holds no lock of its own: the
// state facade (C5) wraps every call in its reader-writer primitive, and
// extends the critical section across Subscribe+snapshot pairs for the
// atomic-initial-frame guarantee. The zero value is not usable;
// construct with New.
type Registry struct {
	checkers map[string]*checker.Checker
	bus      *broadcast.Broadcaster[watcher.ListMessage]
	log      zerolog.Logger
}

// New creates an empty registry. bufferSize sizes each list subscriber's
// buffer (see internal/broadcast).
func New(bufferSize int, logger *zerolog.Logger) *Registry {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Registry{
		checkers: make(map[string]*checker.Checker),
		bus:      broadcast.New[watcher.ListMessage](bufferSize),
		log:      l,
	}
}

// Insert adds or replaces the checker at name, broadcasting Insert if
// the name was absent or InsertReplace if it replaced an existing
// entry. Callers must hold State's exclusive lock around the call.
func (r *Registry) Insert(name string, c *checker.Checker) {
	_, existed := r.checkers[name]
	r.checkers[name] = c
	if existed {
		r.publish(watcher.NewListInsertReplace(name))
	} else {
		r.publish(watcher.NewListInsert(name))
	}
}

// Remove removes the checker at name, if present, broadcasting Remove
// and then dropping the checker (which emits CheckerDropped on its own
// channel). Returns the removed checker, if any.
func (r *Registry) Remove(name string) (*checker.Checker, bool) {
	c, ok := r.checkers[name]
	if !ok {
		return nil, false
	}
	delete(r.checkers, name)
	r.publish(watcher.NewListRemove(name))
	c.Drop()
	return c, true
}

// Get returns the checker at name, if present.
func (r *Registry) Get(name string) (*checker.Checker, bool) {
	c, ok := r.checkers[name]
	return c, ok
}

// Keys returns every checker name in lexicographic order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.checkers))
	for k := range r.checkers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All returns every checker keyed by name. The returned map is a fresh
// copy of the key set but shares checker pointers with the registry.
func (r *Registry) All() map[string]*checker.Checker {
	out := make(map[string]*checker.Checker, len(r.checkers))
	for k, v := range r.checkers {
		out[k] = v
	}
	return out
}

// Subscribe returns a fresh receiver for ListMessage, bound to the
// current moment. Callers must hold State's shared lock across this
// call and the Initial(keys) snapshot they build from Keys().
func (r *Registry) Subscribe() *broadcast.Subscription[watcher.ListMessage] {
	return r.bus.Subscribe()
}

func (r *Registry) publish(msg watcher.ListMessage) {
	r.bus.Publish(msg)
	r.log.Debug().Interface("message", msg).Msg("registry broadcast")
}
