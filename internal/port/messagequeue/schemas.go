package messagequeue

import "encoding/json"

// TaskEventPayload is the schema for tasks.created, tasks.updated and tasks.deleted.
type TaskEventPayload struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	TaskID    string          `json:"task_id"`
	Task      json.RawMessage `json:"task,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// TasksChangedPayload is the schema for tasks.changed.
type TasksChangedPayload struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	Paths     []string `json:"paths,omitempty"`
	CreatedAt string   `json:"created_at"`
}

// CommandPayload is the schema for tasks.commands.
type CommandPayload struct {
	CommandID string `json:"command_id"`
	Text      string `json:"text"`
}

// CommandResultPayload is the schema for tasks.commands.result.
type CommandResultPayload struct {
	CommandID string `json:"command_id"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	TaskID    string `json:"task_id,omitempty"`
	Code      string `json:"code,omitempty"`
}
