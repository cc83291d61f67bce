package watcher

import (
	"encoding/json"
	"fmt"
	"time"
)

// marshalPair encodes (time, status) as a JSON two-element array, with the
// timestamp in RFC3339 form including the local zone offset.
func marshalPair(t time.Time, s Status) ([]byte, error) {
	return json.Marshal([2]any{t.Format(time.RFC3339Nano), s})
}

// unmarshalPair decodes a JSON two-element [timestamp, status] array.
func unmarshalPair(data []byte, t *time.Time, s *Status) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamped status: expected a 2-element array: %w", err)
	}
	var tsStr string
	if err := json.Unmarshal(raw[0], &tsStr); err != nil {
		return fmt.Errorf("timestamped status: bad timestamp: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return fmt.Errorf("timestamped status: bad timestamp: %w", err)
	}
	if err := json.Unmarshal(raw[1], s); err != nil {
		return fmt.Errorf("timestamped status: bad status: %w", err)
	}
	*t = parsed
	return nil
}
