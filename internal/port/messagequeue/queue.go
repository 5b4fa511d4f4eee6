// Package messagequeue defines the port for the optional NATS side channel:
// change events go out on tasks.* subjects and natural-language commands come
// in on tasks.commands.
package messagequeue

import "context"

// Handler processes one inbound message. ctx carries the publisher's request
// id when the message had one. A returned error asks for redelivery.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe runs handler for each message on subject until cancel is
	// called or ctx ends.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain lets in-flight handlers finish, then closes the connection.
	Drain() error
	Close() error

	// IsConnected feeds the /health report.
	IsConnected() bool
}

// Subjects used by taskdeck. All live under the tasks.> stream.
const (
	SubjectTaskCreated  = "tasks.created"
	SubjectTaskUpdated  = "tasks.updated"
	SubjectTaskDeleted  = "tasks.deleted"
	SubjectTasksChanged = "tasks.changed"

	SubjectCommand       = "tasks.commands"        // inbound natural-language commands
	SubjectCommandResult = "tasks.commands.result" // replies to tasks.commands
)
