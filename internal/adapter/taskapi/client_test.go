package taskapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/taskdeck/internal/adapter/taskapi"
	"github.com/Strob0t/taskdeck/internal/domain"
	"github.com/Strob0t/taskdeck/internal/domain/task"
	"github.com/Strob0t/taskdeck/internal/resilience"
)

const testID = "3f2b8c1e-7d4a-4b9e-9c2f-1a5e6d7c8b90"

func sampleTask() task.Task {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return task.Task{
		ID: testID, Slug: "write-report", Title: "Write report", Status: task.StatusTodo,
		Project: task.DefaultProject, Created: ts, Updated: ts,
	}
}

func fastRetry(n int) taskapi.Option {
	return taskapi.WithRetry(resilience.RetryPolicy{MaxRetries: n, BaseDelay: time.Millisecond})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListBuildsQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tasks" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("limit") != "1" || q.Get("status") != "done" || q.Get("project") != "web" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, task.ListResult{
			Tasks:      []task.Task{sampleTask()},
			Pagination: task.Pagination{Page: 2, Limit: 1, Total: 3, TotalPages: 3, HasNextPage: true, HasPrevPage: true},
		})
	}))
	defer srv.Close()

	c := taskapi.NewClient(srv.URL)
	res, err := c.List(context.Background(), task.ListQuery{Page: 2, Limit: 1, Status: task.StatusDone, Project: "web"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(res.Tasks) != 1 || res.Tasks[0].ID != testID {
		t.Fatalf("unexpected tasks: %+v", res.Tasks)
	}
	if !res.Pagination.HasNextPage || !res.Pagination.HasPrevPage {
		t.Errorf("unexpected pagination: %+v", res.Pagination)
	}
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "busy", "code": "INTERNAL_ERROR"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"task": sampleTask()})
	}))
	defer srv.Close()

	c := taskapi.NewClient(srv.URL, fastRetry(3))
	got, err := c.Get(context.Background(), testID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Write report" {
		t.Errorf("title = %q", got.Title)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGetNotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found", "code": domain.CodeNotFound})
	}))
	defer srv.Close()

	c := taskapi.NewClient(srv.URL, fastRetry(3))
	_, err := c.Get(context.Background(), testID)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var ae *taskapi.APIError
	if !errors.As(err, &ae) || ae.Code != domain.CodeNotFound || ae.Status != http.StatusNotFound {
		t.Errorf("unexpected api error: %+v", ae)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestValidationDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "title: is required",
			"code":    domain.CodeValidation,
			"details": []domain.FieldError{{Field: "title", Message: "is required"}},
		})
	}))
	defer srv.Close()

	c := taskapi.NewClient(srv.URL)
	_, err := c.Create(context.Background(), task.CreateRequest{}, "")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var ae *taskapi.APIError
	if !errors.As(err, &ae) || len(ae.Details) != 1 || ae.Details[0].Field != "title" {
		t.Errorf("unexpected details: %+v", ae)
	}
}

func TestMutationsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	seen := make(chan [2]string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		seen <- [2]string{r.Method, r.Header.Get("Idempotency-Key")}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error", "code": "CREATE_TASK_FAILED"})
	}))
	defer srv.Close()

	c := taskapi.NewClient(srv.URL, fastRetry(3))
	_, err := c.Create(context.Background(), task.CreateRequest{Title: "x"}, "temp-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
	if got := <-seen; got[0] != http.MethodPost || got[1] != "temp-1" {
		t.Errorf("method=%q key=%q", got[0], got[1])
	}
}

func TestUpdateAndDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tasks/"+testID {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		switch r.Method {
		case http.MethodPatch:
			var req task.UpdateRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == nil {
				t.Fatalf("bad body: %v", err)
			}
			tk := sampleTask()
			tk.Status = *req.Status
			writeJSON(w, http.StatusOK, map[string]any{"task": tk})
		case http.MethodDelete:
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Task deleted successfully"})
		default:
			t.Fatalf("unexpected method: %s", r.Method)
		}
	}))
	defer srv.Close()

	c := taskapi.NewClient(srv.URL)
	done := task.StatusDone
	got, err := c.Update(context.Background(), testID, task.UpdateRequest{Status: &done})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Status != task.StatusDone {
		t.Errorf("status = %q", got.Status)
	}
	if err := c.Delete(context.Background(), testID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}

func TestListSupersedesInFlightList(t *testing.T) {
	first := make(chan struct{})
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			close(first)
			<-r.Context().Done()
			return
		}
		writeJSON(w, http.StatusOK, task.ListResult{Tasks: []task.Task{}})
	}))
	defer srv.Close()

	c := taskapi.NewClient(srv.URL, fastRetry(3))
	errc := make(chan error, 1)
	go func() {
		_, err := c.List(context.Background(), task.ListQuery{})
		errc <- err
	}()
	<-first

	if _, err := c.List(context.Background(), task.ListQuery{}); err != nil {
		t.Fatalf("second List failed: %v", err)
	}
	select {
	case err := <-errc:
		if !errors.Is(err, taskapi.ErrSuperseded) {
			t.Fatalf("expected ErrSuperseded, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("superseded List did not return")
	}
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNotFound)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, int(status.Load()), map[string]string{"error": "x"})
	}))
	defer srv.Close()

	br := resilience.NewBreaker(2, time.Minute).CountIf(taskapi.IsServerFault)
	c := taskapi.NewClient(srv.URL, fastRetry(0), taskapi.WithBreaker(br))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = c.Get(ctx, testID)
	}
	if br.State() != "closed" {
		t.Fatalf("404s must not trip the breaker, state %s", br.State())
	}

	status.Store(http.StatusInternalServerError)
	_, _ = c.Get(ctx, testID)
	_, _ = c.Get(ctx, testID)
	if _, err := c.Get(ctx, testID); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestListAllWalksPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		tk := sampleTask()
		tk.Title = "page " + page
		writeJSON(w, http.StatusOK, task.ListResult{
			Tasks:      []task.Task{tk},
			Pagination: task.Pagination{HasNextPage: page != "3"},
		})
	}))
	defer srv.Close()

	all, err := taskapi.NewClient(srv.URL).ListAll(context.Background(), task.ListQuery{})
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 3 || all[2].Title != "page 3" {
		t.Errorf("unexpected tasks: %+v", all)
	}
}
