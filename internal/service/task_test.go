package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/taskdeck/internal/domain"
	"github.com/Strob0t/taskdeck/internal/domain/event"
	"github.com/Strob0t/taskdeck/internal/domain/task"
	"github.com/Strob0t/taskdeck/internal/logger"
	"github.com/Strob0t/taskdeck/internal/port/messagequeue"
)

// mockStore implements taskstore.Store in memory.
type mockStore struct {
	mu      sync.Mutex
	tasks   []task.Task
	calls   int
	listErr error
}

func (m *mockStore) EnsureDirectory(_ context.Context) error { return nil }

func (m *mockStore) ListTasks(_ context.Context) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]task.Task, len(m.tasks))
	copy(out, m.tasks)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Updated.After(out[j].Updated) })
	return out, nil
}

func (m *mockStore) GetTask(_ context.Context, id string) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return m.tasks[i].Clone(), nil
		}
	}
	return nil, domain.NewError(domain.ErrNotFound, domain.CodeNotFound, "mock.GetTask", "not found")
}

func (m *mockStore) CreateTask(_ context.Context, d task.Draft) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	now := task.Now()
	t := task.Task{
		ID: task.NewID(), Slug: d.Slug, Title: d.Title, Status: d.Status,
		Project: d.Project, Content: d.Content, Created: now, Updated: now,
	}
	m.tasks = append(m.tasks, t)
	return t.Clone(), nil
}

func (m *mockStore) UpdateTask(_ context.Context, id string, p task.Patch) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			p.Apply(&m.tasks[i])
			m.tasks[i].Updated = m.tasks[i].Updated.Add(time.Millisecond)
			return m.tasks[i].Clone(), nil
		}
	}
	return nil, domain.NewError(domain.ErrNotFound, domain.CodeNotFound, "mock.UpdateTask", "not found")
}

func (m *mockStore) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return nil
		}
	}
	return domain.NewError(domain.ErrNotFound, domain.CodeNotFound, "mock.DeleteTask", "not found")
}

func (m *mockStore) TaskStats(_ context.Context, id string) (*task.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			return &task.Stats{ModifiedTime: m.tasks[i].Updated, Size: int64(len(m.tasks[i].Content))}, nil
		}
	}
	return nil, domain.NewError(domain.ErrNotFound, domain.CodeNotFound, "mock.TaskStats", "not found")
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	mu        sync.Mutex
	published []struct {
		subject string
		data    []byte
	}
	publishErr error
	handler    messagequeue.Handler
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, h messagequeue.Handler) (func(), error) {
	q.handler = h
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

// mockHub records broadcast events.
type mockHub struct {
	mu     sync.Mutex
	events []string
}

func (h *mockHub) BroadcastEvent(_ context.Context, eventType string, _ any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, eventType)
}

func ptr[T any](v T) *T { return &v }

func newTestService() (*TaskService, *mockStore, *mockHub, *mockQueue) {
	store := &mockStore{}
	hub := &mockHub{}
	queue := &mockQueue{}
	return NewTaskService(store, hub, queue, nil), store, hub, queue
}

// --- TaskService Tests ---

func TestTaskServiceCreateDefaults(t *testing.T) {
	svc, _, hub, queue := newTestService()
	ctx := logger.WithRequestID(context.Background(), "req-7")

	got, err := svc.Create(ctx, task.CreateRequest{Title: "Fix the Login Bug!"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Slug != "fix-the-login-bug" {
		t.Errorf("slug = %q", got.Slug)
	}
	if got.Status != task.StatusTodo || got.Project != task.DefaultProject {
		t.Errorf("defaults not applied: %+v", got)
	}
	if len(hub.events) != 1 || hub.events[0] != string(event.TypeTaskCreated) {
		t.Errorf("hub events = %v", hub.events)
	}
	if len(queue.published) != 1 || queue.published[0].subject != messagequeue.SubjectTaskCreated {
		t.Fatalf("queue = %+v", queue.published)
	}

	var ev event.TaskEvent
	if err := json.Unmarshal(queue.published[0].data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.TaskID != got.ID || ev.RequestID != "req-7" {
		t.Errorf("event = %+v", ev)
	}
}

func TestTaskServiceCreateValidation(t *testing.T) {
	svc, store, hub, _ := newTestService()

	_, err := svc.Create(context.Background(), task.CreateRequest{Title: "", Status: ptr(task.Status("blocked"))})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := len(domain.FieldsOf(err)); n != 2 {
		t.Errorf("expected 2 field errors, got %d", n)
	}
	if store.calls != 0 {
		t.Error("store must not be touched by an invalid request")
	}
	if len(hub.events) != 0 {
		t.Error("no event expected on failure")
	}
}

func TestTaskServiceInvalidIDNeverReachesStore(t *testing.T) {
	svc, store, _, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"get", func() error { _, err := svc.Get(ctx, "../../etc/passwd"); return err }},
		{"update", func() error {
			_, err := svc.Update(ctx, "not-a-uuid", task.UpdateRequest{Title: ptr("x")})
			return err
		}},
		{"delete", func() error { return svc.Delete(ctx, "123") }},
		{"stats", func() error { _, err := svc.Stats(ctx, ""); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, domain.ErrInvalidIdentifier) {
				t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
			}
			if domain.CodeOf(err) != domain.CodeInvalidUUID {
				t.Errorf("code = %s", domain.CodeOf(err))
			}
		})
	}
	if store.calls != 0 {
		t.Errorf("store called %d times", store.calls)
	}
}

func TestTaskServiceUpdateRegeneratesSlug(t *testing.T) {
	svc, _, hub, queue := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, task.CreateRequest{Title: "Old title"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := svc.Update(ctx, created.ID, task.UpdateRequest{Title: ptr("Brand New Title")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Slug != "brand-new-title" {
		t.Errorf("slug = %q", got.Slug)
	}

	got, err = svc.Update(ctx, created.ID, task.UpdateRequest{Title: ptr("Other"), Slug: ptr("keep-me")})
	if err != nil {
		t.Fatal(err)
	}
	if got.Slug != "keep-me" {
		t.Errorf("explicit slug overwritten: %q", got.Slug)
	}
	if len(hub.events) != 3 || queue.published[2].subject != messagequeue.SubjectTaskUpdated {
		t.Errorf("events = %v", hub.events)
	}
}

func TestTaskServiceUpdateEmptyBody(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Update(context.Background(), task.NewID(), task.UpdateRequest{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTaskServiceDelete(t *testing.T) {
	svc, store, hub, queue := newTestService()
	ctx := context.Background()

	created, _ := svc.Create(ctx, task.CreateRequest{Title: "Doomed"})
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatal(err)
	}
	if len(store.tasks) != 0 {
		t.Error("task not deleted")
	}
	if hub.events[len(hub.events)-1] != string(event.TypeTaskDeleted) {
		t.Errorf("last event = %s", hub.events[len(hub.events)-1])
	}
	if queue.published[len(queue.published)-1].subject != messagequeue.SubjectTaskDeleted {
		t.Error("expected tasks.deleted on the queue")
	}

	if err := svc.Delete(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: expected not found, got %v", err)
	}
}

func TestTaskServicePublishFailureDoesNotFailMutation(t *testing.T) {
	svc, store, _, queue := newTestService()
	queue.publishErr = errors.New("nats down")

	if _, err := svc.Create(context.Background(), task.CreateRequest{Title: "Still saved"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.tasks) != 1 {
		t.Error("task should be persisted regardless of queue failure")
	}
}

func TestTaskServiceWithoutHubOrQueue(t *testing.T) {
	svc := NewTaskService(&mockStore{}, nil, nil, nil)
	if _, err := svc.Create(context.Background(), task.CreateRequest{Title: "quiet"}); err != nil {
		t.Fatal(err)
	}
}

func TestTaskServiceList(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &mockStore{}
	for i := 0; i < 7; i++ {
		st := task.StatusTodo
		if i%2 == 0 {
			st = task.StatusDone
		}
		store.tasks = append(store.tasks, task.Task{
			ID: task.NewID(), Title: "t", Status: st, Project: "p",
			Updated: base.Add(time.Duration(i) * time.Minute),
		})
	}
	svc := NewTaskService(store, nil, nil, nil)

	tests := []struct {
		name      string
		q         task.ListQuery
		wantLen   int
		wantTotal int
		wantNext  bool
	}{
		{"all", task.ListQuery{}, 7, 7, false},
		{"paged", task.ListQuery{Page: 1, Limit: 3}, 3, 7, true},
		{"last page", task.ListQuery{Page: 3, Limit: 3}, 1, 7, false},
		{"status", task.ListQuery{Status: task.StatusDone}, 4, 4, false},
		{"project miss", task.ListQuery{Project: "other"}, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(context.Background(), tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Tasks) != tt.wantLen || got.Pagination.Total != tt.wantTotal || got.Pagination.HasNextPage != tt.wantNext {
				t.Errorf("got %d tasks, pagination %+v", len(got.Tasks), got.Pagination)
			}
		})
	}
}

func TestTaskServiceListInvalidStatus(t *testing.T) {
	svc, store, _, _ := newTestService()

	_, err := svc.List(context.Background(), task.ListQuery{Status: "blocked"})
	if domain.CodeOf(err) != domain.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
	if store.calls != 0 {
		t.Error("store must not be listed for an invalid filter")
	}
}

func TestTaskServiceListStoreError(t *testing.T) {
	store := &mockStore{listErr: domain.Wrap(domain.ErrStorage, domain.CodeListFailed, "mock", errors.New("eio"))}
	svc := NewTaskService(store, nil, nil, nil)

	_, err := svc.List(context.Background(), task.ListQuery{})
	if domain.CodeOf(err) != domain.CodeListFailed {
		t.Fatalf("expected LIST_TASKS_FAILED, got %v", err)
	}
}

func TestTaskServiceNotifyChanged(t *testing.T) {
	svc, _, hub, queue := newTestService()

	svc.NotifyChanged(context.Background(), []string{"task-x.md"})
	if len(hub.events) != 1 || hub.events[0] != string(event.TypeTasksChanged) {
		t.Errorf("hub events = %v", hub.events)
	}
	if len(queue.published) != 1 || queue.published[0].subject != messagequeue.SubjectTasksChanged {
		t.Errorf("queue = %+v", queue.published)
	}
}
