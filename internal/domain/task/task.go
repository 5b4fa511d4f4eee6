// Package task defines the Task domain entity and its validation rules.
package task

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status represents the workflow state of a task. Any transition is allowed.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in-progress"
	StatusDone       Status = "done"
)

// Statuses returns every valid status in board order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusDone}
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Field limits.
const (
	MaxTitleLen    = 200
	MaxSlugLen     = 100
	MaxProjectLen  = 50
	MaxContentLen  = 100_000
	DefaultProject = "default"
)

// TimeLayout is the wire and on-disk timestamp format: UTC, millisecond precision.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Task is one persisted work item. ID and Created never change after creation.
type Task struct {
	ID      string
	Slug    string
	Title   string
	Status  Status
	Project string
	Created time.Time
	Updated time.Time
	Content string
}

// Clone returns a copy of t.
func (t *Task) Clone() *Task {
	c := *t
	return &c
}

// wireTask is the JSON shape shared by the HTTP API and its clients.
type wireTask struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Status  Status `json:"status"`
	Project string `json:"project"`
	Created string `json:"created"`
	Updated string `json:"updated"`
	Content string `json:"content"`
}

// MarshalJSON renders timestamps in TimeLayout.
func (t Task) MarshalJSON() ([]byte, error) { //nolint:gocritic // value receiver so both Task and *Task marshal
	return json.Marshal(wireTask{
		ID:      t.ID,
		Slug:    t.Slug,
		Title:   t.Title,
		Status:  t.Status,
		Project: t.Project,
		Created: FormatTime(t.Created),
		Updated: FormatTime(t.Updated),
		Content: t.Content,
	})
}

// UnmarshalJSON accepts any RFC 3339 timestamp.
func (t *Task) UnmarshalJSON(data []byte) error {
	var w wireTask
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	created, err := ParseTime(w.Created)
	if err != nil {
		return fmt.Errorf("created: %w", err)
	}
	updated, err := ParseTime(w.Updated)
	if err != nil {
		return fmt.Errorf("updated: %w", err)
	}
	*t = Task{
		ID:      w.ID,
		Slug:    w.Slug,
		Title:   w.Title,
		Status:  w.Status,
		Project: w.Project,
		Created: created,
		Updated: updated,
		Content: w.Content,
	}
	return nil
}

// Now returns the current time truncated to the stored precision.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// FormatTime renders ts in TimeLayout.
func FormatTime(ts time.Time) string {
	return ts.UTC().Format(TimeLayout)
}

// ParseTime parses an RFC 3339 timestamp and normalizes it to UTC milliseconds.
func ParseTime(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC().Truncate(time.Millisecond), nil
}

// Stats is file metadata for one stored task.
type Stats struct {
	ModifiedTime time.Time `json:"modified_time"`
	Size         int64     `json:"size"`
}
