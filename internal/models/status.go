// internal/models/status.go
package models

import (
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of a game. The wire value is a stable code;
// the display label is looked up separately.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

var statusLabels = map[Status]string{
	StatusPlanned:    "Планируется",
	StatusInProgress: "В процессе",
	StatusCompleted:  "Завершена",
}

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusPlanned, StatusInProgress, StatusCompleted}
}

// Label returns the localized display label.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Open reports whether a game with this status still accepts work or teams.
func (s Status) Open() bool {
	return s == StatusPlanned || s == StatusInProgress
}

// ParseStatus accepts either a status code or its display label.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if s.Valid() {
		return s, nil
	}
	for code, label := range statusLabels {
		if label == v {
			return code, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", v)
}

// UnmarshalJSON decodes a code or label. Empty input stays empty so that
// callers can apply their own default.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = ""
		return nil
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
