// Package watcher holds the wire-facing domain types shared by the state
// facade, the HTTP surface and the WebSocket surface: the human-facing
// Spec of a checked service, a single up/down Status observation, and the
// timestamp pairing the server assigns to each observation on arrival.
package watcher

import (
	"fmt"
	"time"
)

// Spec is the human-facing description of a checked service. It is
// replaced wholesale on update; there is no partial-field PATCH.
type Spec struct {
	Description string  `json:"description"`
	URL         *string `json:"url"`
}

// String renders a Spec for log lines. Never used on the wire.
func (s Spec) String() string {
	if s.URL == nil {
		return s.Description
	}
	return fmt.Sprintf("%s (%s)", s.Description, *s.URL)
}

// Status is a single up/down observation. There are no severity levels.
type Status struct {
	IsUp    bool   `json:"is_up"`
	Message string `json:"message"`
}

// String renders a Status for log lines. Never used on the wire.
func (s Status) String() string {
	state := "Down"
	if s.IsUp {
		state = "Up"
	}
	return fmt.Sprintf("%s: %s", state, s.Message)
}

// TimestampedStatus pairs a Status with the server-assigned wall-clock
// time it was recorded at. The timestamp defines insertion order: it is
// never supplied by the caller.
type TimestampedStatus struct {
	Time   time.Time
	Status Status
}

// MarshalJSON renders the pair as the two-element array the wire format
// uses: [timestamp, status].
func (t TimestampedStatus) MarshalJSON() ([]byte, error) {
	return marshalPair(t.Time, t.Status)
}

// UnmarshalJSON parses the two-element [timestamp, status] array.
func (t *TimestampedStatus) UnmarshalJSON(data []byte) error {
	var ts time.Time
	var st Status
	if err := unmarshalPair(data, &ts, &st); err != nil {
		return err
	}
	t.Time = ts
	t.Status = st
	return nil
}
