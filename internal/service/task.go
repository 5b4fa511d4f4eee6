package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	cfotel "github.com/Strob0t/taskdeck/internal/adapter/otel"
	"github.com/Strob0t/taskdeck/internal/domain"
	"github.com/Strob0t/taskdeck/internal/domain/event"
	"github.com/Strob0t/taskdeck/internal/domain/task"
	"github.com/Strob0t/taskdeck/internal/logger"
	"github.com/Strob0t/taskdeck/internal/port/broadcast"
	"github.com/Strob0t/taskdeck/internal/port/messagequeue"
	"github.com/Strob0t/taskdeck/internal/port/taskstore"
)

// TaskService validates task requests, persists them through the store and
// announces every successful mutation on the hub and the queue.
type TaskService struct {
	store   taskstore.Store
	hub     broadcast.Broadcaster
	queue   messagequeue.Queue
	metrics *cfotel.Metrics
}

// NewTaskService creates a new TaskService. hub, queue and metrics are optional.
func NewTaskService(store taskstore.Store, hub broadcast.Broadcaster, queue messagequeue.Queue, metrics *cfotel.Metrics) *TaskService {
	return &TaskService{store: store, hub: hub, queue: queue, metrics: metrics}
}

// List returns one page of tasks matching q, newest first.
func (s *TaskService) List(ctx context.Context, q task.ListQuery) (*task.ListResult, error) {
	var res task.ListResult
	err := s.observe(ctx, "list", "", func(ctx context.Context) error {
		all, err := s.Find(ctx, q)
		if err != nil {
			return err
		}
		res = task.Paginate(all, q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Find returns every task matching the filters of q, ignoring paging.
func (s *TaskService) Find(ctx context.Context, q task.ListQuery) ([]task.Task, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, domain.Validation(domain.FieldError{
			Field:   "status",
			Message: "must be one of todo, in-progress, done",
		})
	}

	all, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]task.Task, 0, len(all))
	for i := range all {
		if q.Matches(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Get returns a task by ID.
func (s *TaskService) Get(ctx context.Context, id string) (*task.Task, error) {
	var t *task.Task
	id = task.NormalizeID(id)
	err := s.observe(ctx, "get", id, func(ctx context.Context) error {
		if err := checkID("service.Get", id); err != nil {
			return err
		}
		var err error
		t, err = s.store.GetTask(ctx, id)
		return err
	})
	return t, err
}

// Create validates req, stores the new task and publishes task.created.
func (s *TaskService) Create(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	var t *task.Task
	err := s.observe(ctx, "create", "", func(ctx context.Context) error {
		if err := req.Validate(); err != nil {
			return err
		}
		var err error
		t, err = s.store.CreateTask(ctx, req.Draft())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, messagequeue.SubjectTaskCreated, event.New(event.TypeTaskCreated, t.ID, t, logger.RequestID(ctx)))
	return t, nil
}

// Update applies req to the task and publishes task.updated.
func (s *TaskService) Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	var t *task.Task
	id = task.NormalizeID(id)
	err := s.observe(ctx, "update", id, func(ctx context.Context) error {
		if err := checkID("service.Update", id); err != nil {
			return err
		}
		if err := req.Validate(); err != nil {
			return err
		}
		var err error
		t, err = s.store.UpdateTask(ctx, id, req.Patch())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, messagequeue.SubjectTaskUpdated, event.New(event.TypeTaskUpdated, t.ID, t, logger.RequestID(ctx)))
	return t, nil
}

// Delete removes the task and publishes task.deleted.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	id = task.NormalizeID(id)
	err := s.observe(ctx, "delete", id, func(ctx context.Context) error {
		if err := checkID("service.Delete", id); err != nil {
			return err
		}
		return s.store.DeleteTask(ctx, id)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, messagequeue.SubjectTaskDeleted, event.New(event.TypeTaskDeleted, id, nil, logger.RequestID(ctx)))
	return nil
}

// Stats returns the file metadata of a task.
func (s *TaskService) Stats(ctx context.Context, id string) (*task.Stats, error) {
	var st *task.Stats
	id = task.NormalizeID(id)
	err := s.observe(ctx, "stats", id, func(ctx context.Context) error {
		if err := checkID("service.Stats", id); err != nil {
			return err
		}
		var err error
		st, err = s.store.TaskStats(ctx, id)
		return err
	})
	return st, err
}

// NotifyChanged announces out-of-band edits to the tasks directory.
func (s *TaskService) NotifyChanged(ctx context.Context, paths []string) {
	s.publish(ctx, messagequeue.SubjectTasksChanged, event.Changed(paths))
}

func checkID(op, id string) error {
	if !task.IsValidID(id) {
		return domain.NewError(domain.ErrInvalidIdentifier, domain.CodeInvalidUUID, op, "invalid task id: "+id)
	}
	return nil
}

// observe wraps one store-backed operation in a span and records its outcome.
func (s *TaskService) observe(ctx context.Context, op, id string, fn func(context.Context) error) error {
	ctx, span := cfotel.StartTaskSpan(ctx, op, id)
	start := time.Now()

	err := fn(ctx)

	code := "OK"
	if err != nil {
		code = domain.CodeOf(err)
	}
	s.metrics.RecordOperation(ctx, op, code, time.Since(start))
	cfotel.EndSpan(span, err)
	return err
}

// publish fans ev out to websocket clients and the queue. Failures are logged:
// the mutation has already been persisted.
func (s *TaskService) publish(ctx context.Context, subject string, ev event.TaskEvent) {
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, string(ev.Type), ev)
		s.metrics.RecordEvent(ctx, string(ev.Type), "ws")
	}

	if s.queue == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal task event", "type", ev.Type, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.Error("failed to publish task event", "subject", subject, "task_id", ev.TaskID, "error", err)
		return
	}
	s.metrics.RecordEvent(ctx, string(ev.Type), "nats")
}
