package taskapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Strob0t/taskdeck/internal/domain"
)

// APIError is a non-2xx answer from the server, decoded from its
// {error, code, details} body.
type APIError struct {
	Status  int                 `json:"-"`
	Message string              `json:"error"`
	Code    string              `json:"code"`
	Details []domain.FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("taskdeck API error %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("taskdeck API error %d: %s", e.Status, e.Message)
}

// Unwrap maps the answer onto the domain kinds so callers can use errors.Is
// the same way on both sides of the wire.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == domain.CodeInvalidUUID:
		return domain.ErrInvalidIdentifier
	case e.Status == http.StatusNotFound:
		return domain.ErrNotFound
	case e.Status == http.StatusConflict:
		return domain.ErrConflict
	case e.Code == domain.CodeValidation:
		return domain.ErrValidation
	case e.Status == http.StatusForbidden:
		return domain.ErrPathViolation
	}
	return nil
}

// IsServerFault reports whether err should count against the circuit
// breaker: transport failures and 5xx answers do, 4xx answers do not.
func IsServerFault(err error) bool {
	if err == nil {
		return false
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status >= 500
	}
	return true
}

func decodeAPIError(status int, body []byte) error {
	ae := &APIError{Status: status}
	if err := json.Unmarshal(body, ae); err != nil || ae.Message == "" {
		ae.Message = http.StatusText(status)
	}
	return ae
}
