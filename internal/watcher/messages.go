package watcher

import (
	"encoding/json"
	"fmt"
)

// CheckerMessage is the externally-tagged union broadcast to a single
// checker's subscribers. Only the fields of the variant selected by the
// unexported kind are meaningful; Marshal/UnmarshalJSON enforce this.
//
// Wire shapes: {"Initial":[Spec, null | [timestamp, Status]]},
// {"UpdatedSpec": Spec}, {"AddedStatus": [timestamp, Status]},
// {"CheckerDropped": null}, {"Lagged": n}.
type CheckerMessage struct {
	kind       checkerMsgKind
	initSpec   Spec
	initLast   *TimestampedStatus
	spec       Spec
	status     TimestampedStatus
	lagged     int
}

type checkerMsgKind int

const (
	checkerInitial checkerMsgKind = iota
	checkerUpdatedSpec
	checkerAddedStatus
	checkerDropped
	checkerLagged
)

// NewCheckerInitial builds the message sent exactly once, at subscription
// time. last is nil when the checker has no recorded status yet.
func NewCheckerInitial(spec Spec, last *TimestampedStatus) CheckerMessage {
	return CheckerMessage{kind: checkerInitial, initSpec: spec, initLast: last}
}

func NewCheckerUpdatedSpec(spec Spec) CheckerMessage {
	return CheckerMessage{kind: checkerUpdatedSpec, spec: spec}
}

func NewCheckerAddedStatus(ts TimestampedStatus) CheckerMessage {
	return CheckerMessage{kind: checkerAddedStatus, status: ts}
}

func NewCheckerDropped() CheckerMessage {
	return CheckerMessage{kind: checkerDropped}
}

func NewCheckerLagged(n int) CheckerMessage {
	return CheckerMessage{kind: checkerLagged, lagged: n}
}

func (m CheckerMessage) MarshalJSON() ([]byte, error) {
	switch m.kind {
	case checkerInitial:
		var last any
		if m.initLast != nil {
			last = *m.initLast
		}
		return json.Marshal(map[string]any{"Initial": [2]any{m.initSpec, last}})
	case checkerUpdatedSpec:
		return json.Marshal(map[string]Spec{"UpdatedSpec": m.spec})
	case checkerAddedStatus:
		return json.Marshal(map[string]TimestampedStatus{"AddedStatus": m.status})
	case checkerDropped:
		return json.Marshal(map[string]any{"CheckerDropped": nil})
	case checkerLagged:
		return json.Marshal(map[string]int{"Lagged": m.lagged})
	default:
		return nil, fmt.Errorf("checker message: unknown kind %d", m.kind)
	}
}

func (m *CheckerMessage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("checker message: expected single-key object: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("checker message: expected exactly one key, got %d", len(raw))
	}
	for key, payload := range raw {
		switch key {
		case "Initial":
			var pair [2]json.RawMessage
			if err := json.Unmarshal(payload, &pair); err != nil {
				return fmt.Errorf("checker message: bad Initial payload: %w", err)
			}
			var spec Spec
			if err := json.Unmarshal(pair[0], &spec); err != nil {
				return fmt.Errorf("checker message: bad Initial spec: %w", err)
			}
			var last *TimestampedStatus
			if string(pair[1]) != "null" {
				var ts TimestampedStatus
				if err := json.Unmarshal(pair[1], &ts); err != nil {
					return fmt.Errorf("checker message: bad Initial last status: %w", err)
				}
				last = &ts
			}
			*m = CheckerMessage{kind: checkerInitial, initSpec: spec, initLast: last}
		case "UpdatedSpec":
			var s Spec
			if err := json.Unmarshal(payload, &s); err != nil {
				return fmt.Errorf("checker message: bad UpdatedSpec payload: %w", err)
			}
			*m = CheckerMessage{kind: checkerUpdatedSpec, spec: s}
		case "AddedStatus":
			var ts TimestampedStatus
			if err := json.Unmarshal(payload, &ts); err != nil {
				return fmt.Errorf("checker message: bad AddedStatus payload: %w", err)
			}
			*m = CheckerMessage{kind: checkerAddedStatus, status: ts}
		case "CheckerDropped":
			*m = CheckerMessage{kind: checkerDropped}
		case "Lagged":
			var n int
			if err := json.Unmarshal(payload, &n); err != nil {
				return fmt.Errorf("checker message: bad Lagged payload: %w", err)
			}
			*m = CheckerMessage{kind: checkerLagged, lagged: n}
		default:
			return fmt.Errorf("checker message: unknown variant %q", key)
		}
	}
	return nil
}

// IsInitial reports whether m is an Initial frame, returning its spec and
// most recent status (nil if the checker had none at subscription time).
func (m CheckerMessage) IsInitial() (Spec, *TimestampedStatus, bool) {
	return m.initSpec, m.initLast, m.kind == checkerInitial
}

func (m CheckerMessage) IsUpdatedSpec() (Spec, bool) {
	return m.spec, m.kind == checkerUpdatedSpec
}

func (m CheckerMessage) IsAddedStatus() (TimestampedStatus, bool) {
	return m.status, m.kind == checkerAddedStatus
}

func (m CheckerMessage) IsCheckerDropped() bool {
	return m.kind == checkerDropped
}

func (m CheckerMessage) IsLagged() (int, bool) {
	return m.lagged, m.kind == checkerLagged
}

// ListMessage is the externally-tagged union broadcast to the registry's
// list-level subscribers: changes to which checkers exist, not changes
// within a single checker's history.
//
// Wire shapes: {"Initial": ["name", ...]}, {"Insert": "name"},
// {"InsertReplace": "name"}, {"Remove": "name"}, {"Lagged": n}.
type ListMessage struct {
	kind    listMsgKind
	names   []string
	name    string
	lagged  int
}

type listMsgKind int

const (
	listInitial listMsgKind = iota
	listInsert
	listInsertReplace
	listRemove
	listLagged
)

func NewListInitial(names []string) ListMessage {
	return ListMessage{kind: listInitial, names: names}
}

func NewListInsert(name string) ListMessage {
	return ListMessage{kind: listInsert, name: name}
}

func NewListInsertReplace(name string) ListMessage {
	return ListMessage{kind: listInsertReplace, name: name}
}

func NewListRemove(name string) ListMessage {
	return ListMessage{kind: listRemove, name: name}
}

func NewListLagged(n int) ListMessage {
	return ListMessage{kind: listLagged, lagged: n}
}

func (m ListMessage) MarshalJSON() ([]byte, error) {
	switch m.kind {
	case listInitial:
		names := m.names
		if names == nil {
			names = []string{}
		}
		return json.Marshal(map[string][]string{"Initial": names})
	case listInsert:
		return json.Marshal(map[string]string{"Insert": m.name})
	case listInsertReplace:
		return json.Marshal(map[string]string{"InsertReplace": m.name})
	case listRemove:
		return json.Marshal(map[string]string{"Remove": m.name})
	case listLagged:
		return json.Marshal(map[string]int{"Lagged": m.lagged})
	default:
		return nil, fmt.Errorf("list message: unknown kind %d", m.kind)
	}
}

func (m *ListMessage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("list message: expected single-key object: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("list message: expected exactly one key, got %d", len(raw))
	}
	for key, payload := range raw {
		switch key {
		case "Initial":
			var names []string
			if err := json.Unmarshal(payload, &names); err != nil {
				return fmt.Errorf("list message: bad Initial payload: %w", err)
			}
			*m = ListMessage{kind: listInitial, names: names}
		case "Insert":
			var name string
			if err := json.Unmarshal(payload, &name); err != nil {
				return fmt.Errorf("list message: bad Insert payload: %w", err)
			}
			*m = ListMessage{kind: listInsert, name: name}
		case "InsertReplace":
			var name string
			if err := json.Unmarshal(payload, &name); err != nil {
				return fmt.Errorf("list message: bad InsertReplace payload: %w", err)
			}
			*m = ListMessage{kind: listInsertReplace, name: name}
		case "Remove":
			var name string
			if err := json.Unmarshal(payload, &name); err != nil {
				return fmt.Errorf("list message: bad Remove payload: %w", err)
			}
			*m = ListMessage{kind: listRemove, name: name}
		case "Lagged":
			var n int
			if err := json.Unmarshal(payload, &n); err != nil {
				return fmt.Errorf("list message: bad Lagged payload: %w", err)
			}
			*m = ListMessage{kind: listLagged, lagged: n}
		default:
			return fmt.Errorf("list message: unknown variant %q", key)
		}
	}
	return nil
}

func (m ListMessage) IsInitial() ([]string, bool) {
	return m.names, m.kind == listInitial
}

func (m ListMessage) IsInsert() (string, bool) {
	return m.name, m.kind == listInsert
}

func (m ListMessage) IsInsertReplace() (string, bool) {
	return m.name, m.kind == listInsertReplace
}

func (m ListMessage) IsRemove() (string, bool) {
	return m.name, m.kind == listRemove
}

func (m ListMessage) IsLagged() (int, bool) {
	return m.lagged, m.kind == listLagged
}
