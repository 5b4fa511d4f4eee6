package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Strob0t/taskdeck/internal/domain"
	"github.com/Strob0t/taskdeck/internal/domain/task"
	"github.com/Strob0t/taskdeck/internal/port/messagequeue"
	"github.com/Strob0t/taskdeck/internal/service"
)

// Handlers holds the HTTP handlers for the task API.
type Handlers struct {
	Tasks    *service.TaskService
	Commands *service.CommandService
	Queue    messagequeue.Queue // optional, reported by /health
	Version  string
}

// ListTasks handles GET /api/v1/tasks.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	res, err := h.Tasks.List(r.Context(), q)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseListQuery reads page, limit, status and project. A missing limit means
// the default page size; an explicit non-positive limit is clamped to 1.
func parseListQuery(r *http.Request) (task.ListQuery, error) {
	v := r.URL.Query()
	var q task.ListQuery
	var fe []domain.FieldError

	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			fe = append(fe, domain.FieldError{Field: "page", Message: "must be an integer"})
		}
		q.Page = n
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			fe = append(fe, domain.FieldError{Field: "limit", Message: "must be an integer"})
		}
		if n <= 0 {
			n = 1
		}
		q.Limit = n
	}
	if len(fe) > 0 {
		return q, domain.Validation(fe...)
	}

	q.Status = task.Status(v.Get("status"))
	q.Project = v.Get("project")
	return q.Normalize(), nil
}

// CreateTask handles POST /api/v1/tasks.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r)
	if !ok {
		return
	}

	t, err := h.Tasks.Create(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/tasks/"+t.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"task": t})
}

// GetTask handles GET /api/v1/tasks/{id}.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": t})
}

// GetTaskStats handles GET /api/v1/tasks/{id}/stats.
func (h *Handlers) GetTaskStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Tasks.Stats(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": st})
}

// UpdateTask handles PATCH and PUT /api/v1/tasks/{id}.
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.UpdateRequest](w, r)
	if !ok {
		return
	}

	t, err := h.Tasks.Update(r.Context(), urlParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": t})
}

// DeleteTask handles DELETE /api/v1/tasks/{id}.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.Tasks.Delete(r.Context(), urlParam(r, "id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Task deleted successfully"})
}

type commandRequest struct {
	Message string `json:"message"`
}

// RunCommand handles POST /api/v1/commands.
func (h *Handlers) RunCommand(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[commandRequest](w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeDomainError(w, r, domain.Validation(domain.FieldError{Field: "message", Message: "is required"}))
		return
	}

	res, err := h.Commands.Execute(r.Context(), req.Message)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": res})
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	type healthStatus struct {
		Status  string `json:"status"`
		Version string `json:"version,omitempty"`
		NATS    string `json:"nats"`
	}

	st := healthStatus{Status: "ok", Version: h.Version, NATS: "disabled"}
	if h.Queue != nil {
		st.NATS = "connected"
		if !h.Queue.IsConnected() {
			st.NATS = "disconnected"
			st.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, st)
}
