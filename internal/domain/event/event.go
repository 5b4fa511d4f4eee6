// Package event defines the change notifications emitted when the task
// directory is modified.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/taskdeck/internal/domain/task"
)

// Type identifies the kind of task event.
type Type string

const (
	TypeTaskCreated Type = "task.created"
	TypeTaskUpdated Type = "task.updated"
	TypeTaskDeleted Type = "task.deleted"

	// TypeTasksChanged is emitted when the directory changed outside the API
	// (an editor or git checkout). Clients should refetch.
	TypeTasksChanged Type = "tasks.changed"
)

// TaskEvent is one immutable change notification.
type TaskEvent struct {
	ID        string     `json:"id"`
	Type      Type       `json:"type"`
	TaskID    string     `json:"task_id,omitempty"`
	Task      *task.Task `json:"task,omitempty"`
	Paths     []string   `json:"paths,omitempty"` // only for tasks.changed
	RequestID string     `json:"request_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// New returns an event of type typ for t. t may be nil for deletions.
func New(typ Type, taskID string, t *task.Task, requestID string) TaskEvent {
	ev := TaskEvent{
		ID:        uuid.NewString(),
		Type:      typ,
		TaskID:    taskID,
		RequestID: requestID,
		CreatedAt: time.Now().UTC(),
	}
	if t != nil {
		ev.Task = t.Clone()
	}
	return ev
}

// Changed returns a tasks.changed event listing the touched file names.
func Changed(paths []string) TaskEvent {
	return TaskEvent{
		ID:        uuid.NewString(),
		Type:      TypeTasksChanged,
		Paths:     paths,
		CreatedAt: time.Now().UTC(),
	}
}
