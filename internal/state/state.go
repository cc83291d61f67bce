// Package state implements the state facade (C5): a registry plus a
// fixed history length, guarded by a single reader-writer lock that
// every exported operation acquires. The "atomically" requirement on
// subscribe_checker/subscribe_list is enforced here by extending the
// shared lock to cover both obtaining the broadcast receiver and
// building the Initial frame.
package state

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adred-codev/swec/internal/broadcast"
	"github.com/adred-codev/swec/internal/checker"
	"github.com/adred-codev/swec/internal/registry"
	"github.com/adred-codev/swec/internal/watcher"
)

// ErrNotFound is returned by operations targeting a checker name that is
// not present in the registry.
var ErrNotFound = errors.New("checker not found")

// ErrAlreadyExists is returned by AddChecker when the name is already
// present in the registry.
var ErrAlreadyExists = errors.New("checker already exists")

// CheckerView is the cloned, lock-free snapshot returned by read
// operations: a spec paired with its current history.
type CheckerView struct {
	Spec     watcher.Spec                `json:"spec"`
	Statuses []watcher.TimestampedStatus `json:"statuses"`
}

// State is the single shared entry point into the registry. The zero
// value is not usable; construct with New.
type State struct {
	mu            sync.RWMutex
	registry      *registry.Registry
	historyLength int
	bufferSize    int
	log           zerolog.Logger
}

// New creates an empty State. historyLength sizes every newly created
// checker's history and is fixed for the life of the process.
// bufferSize sizes every broadcast subscriber's buffer.
func New(historyLength, bufferSize int, logger *zerolog.Logger) *State {
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &State{
		registry:      registry.New(bufferSize, logger),
		historyLength: historyLength,
		bufferSize:    bufferSize,
		log:           l,
	}
}

// HistoryLength returns the fixed history length applied to every
// newly created checker.
func (s *State) HistoryLength() int {
	return s.historyLength
}

// AddChecker creates a checker with a fresh empty history sized at
// HistoryLength and inserts it into the registry, triggering Insert.
func (s *State) AddChecker(name string, spec watcher.Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registry.Get(name); ok {
		return ErrAlreadyExists
	}
	c := checker.New(spec, s.historyLength, s.bufferSize, &s.log)
	s.registry.Insert(name, c)
	return nil
}

// RemoveChecker removes the named checker and returns a snapshot of it
// as it stood at removal.
func (s *State) RemoveChecker(name string) (CheckerView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.registry.Get(name)
	if !ok {
		return CheckerView{}, ErrNotFound
	}
	view := CheckerView{Spec: c.Spec(), Statuses: c.History()}
	s.registry.Remove(name)
	return view, nil
}

// UpdateSpec replaces the named checker's spec.
func (s *State) UpdateSpec(name string, spec watcher.Spec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.registry.Get(name)
	if !ok {
		return ErrNotFound
	}
	c.UpdateSpec(spec)
	return nil
}

// AddStatus appends a status observation to the named checker's
// history.
func (s *State) AddStatus(name string, status watcher.Status) (watcher.TimestampedStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.registry.Get(name)
	if !ok {
		return watcher.TimestampedStatus{}, ErrNotFound
	}
	return c.AddStatus(status), nil
}

// GetChecker returns a cloned snapshot of the named checker.
func (s *State) GetChecker(name string) (CheckerView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.registry.Get(name)
	if !ok {
		return CheckerView{}, ErrNotFound
	}
	return CheckerView{Spec: c.Spec(), Statuses: c.History()}, nil
}

// GetCheckers returns a cloned snapshot of every checker, keyed by name.
func (s *State) GetCheckers() map[string]CheckerView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.registry.All()
	out := make(map[string]CheckerView, len(all))
	for name, c := range all {
		out[name] = CheckerView{Spec: c.Spec(), Statuses: c.History()}
	}
	return out
}

// CheckerNames returns every checker name in lexicographic order.
func (s *State) CheckerNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Keys()
}

// SubscribeChecker atomically obtains a receiver for the named
// checker's messages and the Initial frame it should see first, so no
// intervening broadcast can be missed or double-delivered.
func (s *State) SubscribeChecker(name string) (*broadcast.Subscription[watcher.CheckerMessage], watcher.CheckerMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.registry.Get(name)
	if !ok {
		return nil, watcher.CheckerMessage{}, ErrNotFound
	}
	sub := c.Subscribe()
	var last *watcher.TimestampedStatus
	if ts, has := c.LastStatus(); has {
		last = &ts
	}
	initial := watcher.NewCheckerInitial(c.Spec(), last)
	return sub, initial, nil
}

// SubscribeList atomically obtains a receiver for registry membership
// changes and the Initial(keys) frame it should see first.
func (s *State) SubscribeList() (*broadcast.Subscription[watcher.ListMessage], watcher.ListMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub := s.registry.Subscribe()
	initial := watcher.NewListInitial(s.registry.Keys())
	return sub, initial
}

// dumpEntry is the on-disk shape of a single checker: its spec and
// history, keyed by name in the enclosing dump object.
type dumpEntry struct {
	Spec     watcher.Spec                `json:"spec"`
	Statuses []watcher.TimestampedStatus `json:"statuses"`
}

// ToJSON serializes the full registry for persistence.
func (s *State) ToJSON() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.registry.All()
	out := make(map[string]dumpEntry, len(all))
	for name, c := range all {
		out[name] = dumpEntry{Spec: c.Spec(), Statuses: c.History()}
	}
	return json.Marshal(out)
}

// ReconcileMode controls how a loaded checker's history is reconciled
// against the process's fixed history length when it differs from the
// length recorded in the dump.
type ReconcileMode int

const (
	// ReconcileResize grows capacity only. A loaded history longer than
	// the configured history length cannot be resized down; LoadFromJSON
	// logs a warning for it and evicts its oldest entries to fit.
	// This is the default.
	ReconcileResize ReconcileMode = iota
	// ReconcileTruncateFIFO evicts the oldest entries to fit, always
	// succeeding. Opt-in, since it silently discards history.
	ReconcileTruncateFIFO
)

// LoadFromJSON replaces the registry's contents with what is encoded in
// data, reconciling each loaded history against HistoryLength via mode.
// Intended for startup rehydration only, before any subscriber exists.
func (s *State) LoadFromJSON(data []byte, mode ReconcileMode) error {
	var loaded map[string]dumpEntry
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.registry = registry.New(s.bufferSize, &s.log)
	for name, entry := range loaded {
		c := checker.Restore(entry.Spec, entry.Statuses, s.bufferSize, &s.log)
		if mode == ReconcileTruncateFIFO {
			c.TruncateFIFO(s.historyLength)
		} else if err := c.Resize(s.historyLength); err != nil {
			s.log.Warn().Err(err).Str("checker", name).Msg("history longer than configured length on load; truncating")
			c.TruncateFIFO(s.historyLength)
		}
		s.registry.Insert(name, c)
	}
	return nil
}
