package task

// Pagination bounds.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// ListQuery selects and pages tasks. Zero values mean "no filter".
type ListQuery struct {
	Page    int
	Limit   int
	Status  Status
	Project string
}

// Normalize clamps Page to >= 1 and Limit to [1, MaxPageLimit], defaulting
// Limit to DefaultPageLimit when unset.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.Limit == 0:
		q.Limit = DefaultPageLimit
	case q.Limit < 1:
		q.Limit = 1
	case q.Limit > MaxPageLimit:
		q.Limit = MaxPageLimit
	}
	return q
}

// Matches reports whether t passes the query's filters.
func (q ListQuery) Matches(t *Task) bool {
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.Project != "" && t.Project != q.Project {
		return false
	}
	return true
}

// Pagination describes one page of a filtered result.
type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// ListResult is one page of tasks.
type ListResult struct {
	Tasks      []Task     `json:"tasks"`
	Pagination Pagination `json:"pagination"`
}

// Paginate filters all (already sorted) and slices out the requested page.
func Paginate(all []Task, q ListQuery) ListResult {
	q = q.Normalize()

	filtered := make([]Task, 0, len(all))
	for i := range all {
		if q.Matches(&all[i]) {
			filtered = append(filtered, all[i])
		}
	}

	total := len(filtered)
	pages := (total + q.Limit - 1) / q.Limit
	// Compare pages before multiplying so a huge page cannot overflow.
	start, end := total, total
	if q.Page <= pages {
		start = (q.Page - 1) * q.Limit
		end = min(start+q.Limit, total)
	}

	return ListResult{
		Tasks: filtered[start:end],
		Pagination: Pagination{
			Page:        q.Page,
			Limit:       q.Limit,
			Total:       total,
			TotalPages:  pages,
			HasNextPage: q.Page < pages,
			HasPrevPage: q.Page > 1,
		},
	}
}
