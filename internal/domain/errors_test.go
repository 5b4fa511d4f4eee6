package domain

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestErrorIsKindAndCause(t *testing.T) {
	err := Wrap(ErrStorage, CodeListFailed, "filestore.ListTasks", fs.ErrPermission)

	if !errors.Is(err, ErrStorage) {
		t.Error("expected errors.Is(err, ErrStorage)")
	}
	if !errors.Is(err, fs.ErrPermission) {
		t.Error("expected cause to stay reachable")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("storage failure must not match ErrNotFound")
	}
	if got := CodeOf(err); got != CodeListFailed {
		t.Errorf("CodeOf = %q, want %q", got, CodeListFailed)
	}
}

func TestWrapKeepsInnermostClassification(t *testing.T) {
	inner := NewError(ErrNotFound, CodeNotFound, "filestore.GetTask", "task abc not found")
	outer := Wrap(ErrStorage, CodeUpdateFailed, "filestore.UpdateTask", fmt.Errorf("read: %w", inner))

	if !errors.Is(outer, ErrNotFound) {
		t.Error("expected not-found kind to survive wrapping")
	}
	if got := CodeOf(outer); got != CodeNotFound {
		t.Errorf("CodeOf = %q, want %q", got, CodeNotFound)
	}
	if Wrap(ErrStorage, CodeGetFailed, "op", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestCodeOfPlainSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", ErrNotFound), CodeNotFound},
		{fmt.Errorf("x: %w", ErrValidation), CodeValidation},
		{fmt.Errorf("x: %w", ErrInvalidIdentifier), CodeInvalidUUID},
		{fmt.Errorf("x: %w", ErrConflict), CodeConflict},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		if got := CodeOf(tt.err); got != tt.want {
			t.Errorf("CodeOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestValidationCarriesFields(t *testing.T) {
	err := Validation(
		FieldError{Field: "title", Message: "is required"},
		FieldError{Field: "slug", Message: "must match ^[a-z0-9-]+$"},
	)
	wrapped := fmt.Errorf("create: %w", err)

	if !errors.Is(wrapped, ErrValidation) {
		t.Fatal("expected ErrValidation")
	}
	fields := FieldsOf(wrapped)
	if len(fields) != 2 || fields[0].Field != "title" || fields[1].Field != "slug" {
		t.Errorf("unexpected fields: %+v", fields)
	}

	single := Validation(FieldError{Field: "title", Message: "is required"})
	if single.Error() != "title: is required" {
		t.Errorf("single-field message = %q", single.Error())
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Kind: ErrStorage, Code: CodeGetFailed, Op: "filestore.GetTask", Err: errors.New("disk gone")}
	if got := err.Error(); got != "filestore.GetTask: storage failure: disk gone" {
		t.Errorf("Error() = %q", got)
	}
}
