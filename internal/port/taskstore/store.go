// Package taskstore defines the port interface for task persistence.
package taskstore

import (
	"context"

	"github.com/Strob0t/taskdeck/internal/domain/task"
)

// Store persists tasks. Implementations classify failures with the domain
// error kinds: ErrNotFound for a missing record, ErrInvalidIdentifier for a
// malformed id, ErrPathViolation for sandbox breaches and ErrStorage for
// everything else.
type Store interface {
	EnsureDirectory(ctx context.Context) error
	ListTasks(ctx context.Context) ([]task.Task, error)
	GetTask(ctx context.Context, id string) (*task.Task, error)
	CreateTask(ctx context.Context, draft task.Draft) (*task.Task, error)
	UpdateTask(ctx context.Context, id string, patch task.Patch) (*task.Task, error)
	DeleteTask(ctx context.Context, id string) error
	TaskStats(ctx context.Context, id string) (*task.Stats, error)
}
