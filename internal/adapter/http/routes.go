package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/taskdeck/internal/middleware"
)

// MountRoutes registers the task API on r. idem wraps the create route so a
// retried POST with the same Idempotency-Key replays the first response.
func MountRoutes(r chi.Router, h *Handlers, idem func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})

		// Tasks
		r.Get("/tasks", h.ListTasks)
		r.With(idem).Post("/tasks", h.CreateTask)
		r.Get("/tasks/{id}", h.GetTask)
		r.Get("/tasks/{id}/stats", h.GetTaskStats)
		r.Patch("/tasks/{id}", h.UpdateTask)
		r.With(middleware.Deprecation(time.Time{}, "PATCH /api/v1/tasks/{id}")).Put("/tasks/{id}", h.UpdateTask)
		r.Delete("/tasks/{id}", h.DeleteTask)

		// Natural-language commands
		r.Post("/commands", h.RunCommand)
	})
}
