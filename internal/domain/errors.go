// Package domain provides shared domain-level errors.
//
// Every failure that crosses a package boundary is either one of the sentinel
// kinds below, wrapped with %w, or an *Error that carries a kind plus a stable
// machine code for the wire. Callers branch with errors.Is on the kind and
// read the code with CodeOf.
package domain

import (
	"errors"
	"strings"
)

// Sentinel kinds.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a request clashes with one already in flight.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates a payload failed field validation.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidIdentifier indicates an id that is not a canonical UUID v4.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrPathViolation indicates a path that would leave the sandbox root.
	ErrPathViolation = errors.New("path violation")

	// ErrInvalidFormat indicates a stored record that cannot be decoded.
	ErrInvalidFormat = errors.New("invalid record format")

	// ErrInvalidContent indicates a serialized record that may not be written.
	ErrInvalidContent = errors.New("invalid content")

	// ErrStorage indicates an unexpected filesystem failure.
	ErrStorage = errors.New("storage failure")
)

// Stable wire codes.
const (
	CodeAbsolutePath      = "ABSOLUTE_PATH"
	CodePathTraversal     = "PATH_TRAVERSAL"
	CodeSandboxEscape     = "SANDBOX_ESCAPE"
	CodeInvalidUUID       = "INVALID_UUID"
	CodeInvalidFormat     = "INVALID_TASK_FORMAT"
	CodeInvalidTaskID     = "INVALID_TASK_ID"
	CodeInvalidContent    = "INVALID_CONTENT"
	CodeNotFound          = "TASK_NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeConflict          = "CONFLICT"
	CodeDirectoryCreate   = "DIRECTORY_CREATE_FAILED"
	CodeListFailed        = "LIST_TASKS_FAILED"
	CodeGetFailed         = "GET_TASK_FAILED"
	CodeCreateFailed      = "CREATE_TASK_FAILED"
	CodeUpdateFailed      = "UPDATE_TASK_FAILED"
	CodeDeleteFailed      = "DELETE_TASK_FAILED"
	CodeStatsFailed       = "GET_STATS_FAILED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeInvalidJSON       = "INVALID_JSON"
	CodePayloadTooLarge   = "PAYLOAD_TOO_LARGE"
	CodeRateLimited       = "RATE_LIMITED"
	CodeIdempotencyInUse  = "IDEMPOTENCY_IN_PROGRESS"
	CodeCommandNotHandled = "UNKNOWN_COMMAND"
)

// FieldError names one invalid field of a request payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified failure.
type Error struct {
	Kind    error        // one of the sentinel kinds
	Code    string       // stable machine-readable code
	Op      string       // operation that failed, e.g. "filestore.GetTask"
	Message string       // human-readable detail
	Fields  []FieldError // populated for validation failures
	Err     error        // underlying cause, may be nil
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	default:
		b.WriteString(e.Code)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewError builds a classified error without an underlying cause.
func NewError(kind error, code, op, msg string) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Message: msg}
}

// Wrap classifies err. If err is already an *Error it is returned unchanged so
// the innermost classification wins.
func Wrap(kind error, code, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: kind, Code: code, Op: op, Err: err}
}

// Validation returns an ErrValidation error listing the offending fields.
func Validation(fields ...FieldError) *Error {
	msg := "validation failed"
	if len(fields) == 1 {
		msg = fields[0].Field + ": " + fields[0].Message
	}
	return &Error{Kind: ErrValidation, Code: CodeValidation, Message: msg, Fields: fields}
}

// CodeOf returns the wire code of err, or CodeInternal when err is unclassified.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Code != "" {
		return de.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrInvalidIdentifier):
		return CodeInvalidUUID
	case errors.Is(err, ErrConflict):
		return CodeConflict
	default:
		return CodeInternal
	}
}

// FieldsOf returns the field details of a validation error, if any.
func FieldsOf(err error) []FieldError {
	var de *Error
	if errors.As(err, &de) {
		return de.Fields
	}
	return nil
}
