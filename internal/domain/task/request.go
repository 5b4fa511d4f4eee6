package task

import (
	"fmt"
	"unicode/utf8"

	"github.com/Strob0t/taskdeck/internal/domain"
)

// CreateRequest is the payload for creating a task. Nil fields are omitted.
type CreateRequest struct {
	Title   string  `json:"title"`
	Slug    *string `json:"slug,omitempty"`
	Status  *Status `json:"status,omitempty"`
	Project *string `json:"project,omitempty"`
	Content *string `json:"content,omitempty"`
}

// UpdateRequest is a partial update. At least one field must be set.
type UpdateRequest struct {
	Title   *string `json:"title,omitempty"`
	Slug    *string `json:"slug,omitempty"`
	Status  *Status `json:"status,omitempty"`
	Project *string `json:"project,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Validate checks every field and reports all violations at once.
func (r *CreateRequest) Validate() error {
	var fe []domain.FieldError
	fe = checkTitle(fe, r.Title)
	fe = checkOptional(fe, r.Slug, r.Status, r.Project, r.Content)
	if len(fe) > 0 {
		return domain.Validation(fe...)
	}
	return nil
}

// Validate checks every present field and reports all violations at once.
func (r *UpdateRequest) Validate() error {
	if r.Empty() {
		return domain.Validation(domain.FieldError{Field: "body", Message: "at least one field must be provided"})
	}
	var fe []domain.FieldError
	if r.Title != nil {
		fe = checkTitle(fe, *r.Title)
	}
	fe = checkOptional(fe, r.Slug, r.Status, r.Project, r.Content)
	if len(fe) > 0 {
		return domain.Validation(fe...)
	}
	return nil
}

// Empty reports whether no field is set.
func (r *UpdateRequest) Empty() bool {
	return r.Title == nil && r.Slug == nil && r.Status == nil && r.Project == nil && r.Content == nil
}

func checkTitle(fe []domain.FieldError, title string) []domain.FieldError {
	n := utf8.RuneCountInString(title)
	switch {
	case n == 0:
		fe = append(fe, domain.FieldError{Field: "title", Message: "is required"})
	case n > MaxTitleLen:
		fe = append(fe, domain.FieldError{Field: "title", Message: fmt.Sprintf("must be at most %d characters", MaxTitleLen)})
	}
	return fe
}

func checkOptional(fe []domain.FieldError, slug *string, status *Status, project, content *string) []domain.FieldError {
	if slug != nil && !IsValidSlug(*slug) {
		fe = append(fe, domain.FieldError{
			Field:   "slug",
			Message: fmt.Sprintf("must be 1-%d characters matching ^[a-z0-9-]+$", MaxSlugLen),
		})
	}
	if status != nil && !status.Valid() {
		fe = append(fe, domain.FieldError{Field: "status", Message: "must be one of todo, in-progress, done"})
	}
	if project != nil {
		if n := utf8.RuneCountInString(*project); n == 0 || n > MaxProjectLen {
			fe = append(fe, domain.FieldError{
				Field:   "project",
				Message: fmt.Sprintf("must be 1-%d characters", MaxProjectLen),
			})
		}
	}
	if content != nil && utf8.RuneCountInString(*content) > MaxContentLen {
		fe = append(fe, domain.FieldError{
			Field:   "content",
			Message: fmt.Sprintf("must be at most %d characters", MaxContentLen),
		})
	}
	return fe
}

// Draft holds the caller-supplied fields of a new record. The store assigns
// ID and timestamps.
type Draft struct {
	Slug    string
	Title   string
	Status  Status
	Project string
	Content string
}

// Draft converts a validated request into a Draft, filling defaults.
func (r *CreateRequest) Draft() Draft {
	d := Draft{
		Title:   r.Title,
		Status:  StatusTodo,
		Project: DefaultProject,
	}
	if r.Slug != nil {
		d.Slug = *r.Slug
	} else {
		d.Slug = Slugify(r.Title)
	}
	if r.Status != nil {
		d.Status = *r.Status
	}
	if r.Project != nil {
		d.Project = *r.Project
	}
	if r.Content != nil {
		d.Content = *r.Content
	}
	return d
}

// Patch is a shallow partial update applied by the store.
type Patch struct {
	Slug    *string
	Title   *string
	Status  *Status
	Project *string
	Content *string
}

// Patch converts a validated request into a Patch. When the title changes and
// no slug is supplied, the slug is regenerated from the new title.
func (r *UpdateRequest) Patch() Patch {
	p := Patch{
		Slug:    r.Slug,
		Title:   r.Title,
		Status:  r.Status,
		Project: r.Project,
		Content: r.Content,
	}
	if r.Title != nil && r.Slug == nil {
		s := Slugify(*r.Title)
		p.Slug = &s
	}
	return p
}

// Apply merges the set fields of p into t. ID and Created are never touched.
func (p Patch) Apply(t *Task) {
	if p.Slug != nil {
		t.Slug = *p.Slug
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Project != nil {
		t.Project = *p.Project
	}
	if p.Content != nil {
		t.Content = *p.Content
	}
}
