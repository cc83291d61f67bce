package state

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/adred-codev/swec/internal/watcher"
)

func TestAddCheckerRejectsDuplicateName(t *testing.T) {
	s := New(5, 4, nil)
	if err := s.AddChecker("alpha", watcher.Spec{Description: "a"}); err != nil {
		t.Fatalf("first AddChecker: %v", err)
	}
	if err := s.AddChecker("alpha", watcher.Spec{Description: "a"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestOperationsOnMissingCheckerReturnNotFound(t *testing.T) {
	s := New(5, 4, nil)
	if _, err := s.GetChecker("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetChecker: expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateSpec("ghost", watcher.Spec{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("UpdateSpec: expected ErrNotFound, got %v", err)
	}
	if _, err := s.AddStatus("ghost", watcher.Status{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("AddStatus: expected ErrNotFound, got %v", err)
	}
	if _, err := s.RemoveChecker("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("RemoveChecker: expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.SubscribeChecker("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SubscribeChecker: expected ErrNotFound, got %v", err)
	}
}

func TestSubscribeCheckerInitialReflectsPriorMutations(t *testing.T) {
	s := New(5, 4, nil)
	s.AddChecker("alpha", watcher.Spec{Description: "a"})
	s.AddStatus("alpha", watcher.Status{IsUp: true, Message: "up"})

	_, initial, err := s.SubscribeChecker("alpha")
	if err != nil {
		t.Fatalf("SubscribeChecker: %v", err)
	}
	spec, last, ok := initial.IsInitial()
	if !ok || spec.Description != "a" || last == nil || last.Status.Message != "up" {
		t.Fatalf("Initial frame missing prior mutation: %+v", initial)
	}
}

func TestSubscribeCheckerThenSubsequentMutationsDeliver(t *testing.T) {
	s := New(5, 4, nil)
	s.AddChecker("alpha", watcher.Spec{Description: "a"})

	sub, initial, err := s.SubscribeChecker("alpha")
	if err != nil {
		t.Fatalf("SubscribeChecker: %v", err)
	}
	_, last, _ := initial.IsInitial()
	if last != nil {
		t.Fatalf("expected no prior status, got %+v", last)
	}

	s.AddStatus("alpha", watcher.Status{IsUp: true, Message: "up"})
	msg, _, ok := sub.Recv()
	if !ok {
		t.Fatalf("expected a message after subscribe")
	}
	ts, isAdded := msg.IsAddedStatus()
	if !isAdded || ts.Status.Message != "up" {
		t.Fatalf("expected AddedStatus(up), got %+v", msg)
	}
}

func TestSubscribeListInitialIsKeySnapshot(t *testing.T) {
	s := New(5, 4, nil)
	s.AddChecker("zeta", watcher.Spec{})
	s.AddChecker("alpha", watcher.Spec{})

	_, initial := s.SubscribeList()
	names, ok := initial.IsInitial()
	if !ok {
		t.Fatalf("expected Initial variant")
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("Initial keys = %v, want lexicographic [alpha zeta]", names)
	}
}

func TestToJSONAndLoadFromJSONRoundTrip(t *testing.T) {
	s := New(5, 4, nil)
	s.AddChecker("alpha", watcher.Spec{Description: "a"})
	s.AddStatus("alpha", watcher.Status{IsUp: true, Message: "up"})

	data, err := s.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	s2 := New(5, 4, nil)
	if err := s2.LoadFromJSON(data, ReconcileResize); err != nil {
		t.Fatalf("LoadFromJSON: %v", err)
	}

	view, err := s2.GetChecker("alpha")
	if err != nil {
		t.Fatalf("GetChecker after load: %v", err)
	}
	if view.Spec.Description != "a" || len(view.Statuses) != 1 || view.Statuses[0].Status.Message != "up" {
		t.Fatalf("loaded view mismatch: %+v", view)
	}

	var sanity map[string]json.RawMessage
	if err := json.Unmarshal(data, &sanity); err != nil {
		t.Fatalf("dump is not valid JSON: %v", err)
	}
}

func TestLoadFromJSONTruncatesOversizedHistoryWhenRequested(t *testing.T) {
	s := New(2, 4, nil)
	s.AddChecker("alpha", watcher.Spec{})
	// Build a dump with a longer history than the new configured length.
	dump := map[string]dumpEntry{
		"alpha": {
			Spec: watcher.Spec{Description: "a"},
			Statuses: []watcher.TimestampedStatus{
				{Status: watcher.Status{Message: "1"}},
				{Status: watcher.Status{Message: "2"}},
				{Status: watcher.Status{Message: "3"}},
			},
		},
	}
	data, _ := json.Marshal(dump)

	s2 := New(2, 4, nil)
	if err := s2.LoadFromJSON(data, ReconcileTruncateFIFO); err != nil {
		t.Fatalf("LoadFromJSON: %v", err)
	}
	view, err := s2.GetChecker("alpha")
	if err != nil {
		t.Fatalf("GetChecker: %v", err)
	}
	if len(view.Statuses) != 2 || view.Statuses[0].Status.Message != "2" || view.Statuses[1].Status.Message != "3" {
		t.Fatalf("truncated history = %+v", view.Statuses)
	}
}
