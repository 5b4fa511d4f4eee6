package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/taskdeck/internal/domain"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large", domain.CodePayloadTooLarge)
		} else {
			writeError(w, http.StatusBadRequest, "invalid JSON body", domain.CodeInvalidJSON)
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// statusOf maps a classified error to its HTTP status. An undecodable record
// is a server-side fault even though it also names an invalid identifier, so
// ErrInvalidFormat is checked first.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidFormat):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrPathViolation):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidIdentifier),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidContent):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError answers with {error, code, details?}. Server faults and
// sandbox violations are logged and their message replaced with a generic one.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	code := domain.CodeOf(err)

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "code", code, "error", err)
		writeError(w, status, "internal server error", code)
		return
	}
	if errors.Is(err, domain.ErrPathViolation) {
		slog.WarnContext(r.Context(), "sandbox violation", "code", code, "path", r.URL.Path, "error", err)
		writeError(w, status, "access denied", code)
		return
	}

	resp := errorResponse{Error: err.Error(), Code: code}
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		resp.Error = de.Message
	}
	if fields := domain.FieldsOf(err); len(fields) > 0 {
		resp.Details = fields
	}
	writeJSON(w, status, resp)
}
