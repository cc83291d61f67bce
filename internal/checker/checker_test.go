package checker

import (
	"testing"

	"github.com/adred-codev/swec/internal/watcher"
)

func TestAddStatusBroadcastsAndAppends(t *testing.T) {
	c := New(watcher.Spec{Description: "db"}, 3, 4, nil)
	sub := c.Subscribe()

	c.AddStatus(watcher.Status{IsUp: true, Message: "ok"})

	ts, lag, ok := sub.Recv()
	if !ok || lag != 0 {
		t.Fatalf("Recv() ok=%v lag=%d", ok, lag)
	}
	got, isAdded := ts.IsAddedStatus()
	if !isAdded || got.Status.Message != "ok" {
		t.Fatalf("expected AddedStatus(ok), got %+v", ts)
	}

	last, has := c.LastStatus()
	if !has || last.Status.Message != "ok" {
		t.Fatalf("LastStatus() = %+v, %v", last, has)
	}
}

func TestUpdateSpecBroadcasts(t *testing.T) {
	c := New(watcher.Spec{Description: "db"}, 3, 4, nil)
	sub := c.Subscribe()

	c.UpdateSpec(watcher.Spec{Description: "db2"})

	msg, _, ok := sub.Recv()
	if !ok {
		t.Fatalf("expected a message")
	}
	spec, isUpdated := msg.IsUpdatedSpec()
	if !isUpdated || spec.Description != "db2" {
		t.Fatalf("expected UpdatedSpec(db2), got %+v", msg)
	}
	if c.Spec().Description != "db2" {
		t.Fatalf("Spec() not updated: %+v", c.Spec())
	}
}

func TestDropBroadcastsCheckerDroppedThenCloses(t *testing.T) {
	c := New(watcher.Spec{Description: "db"}, 3, 4, nil)
	sub := c.Subscribe()

	c.Drop()

	msg, _, ok := sub.Recv()
	if !ok || !msg.IsCheckerDropped() {
		t.Fatalf("expected CheckerDropped, got ok=%v msg=%+v", ok, msg)
	}
	if _, _, ok := sub.Recv(); ok {
		t.Fatalf("expected channel closed after CheckerDropped")
	}
}

func TestHistoryEvictsOldestAtCapacity(t *testing.T) {
	c := New(watcher.Spec{Description: "db"}, 2, 4, nil)
	c.AddStatus(watcher.Status{Message: "1"})
	c.AddStatus(watcher.Status{Message: "2"})
	c.AddStatus(watcher.Status{Message: "3"})

	hist := c.History()
	if len(hist) != 2 || hist[0].Status.Message != "2" || hist[1].Status.Message != "3" {
		t.Fatalf("History() = %+v", hist)
	}
}
