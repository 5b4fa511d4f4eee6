package task

import (
	"regexp"
	"strings"
)

var (
	slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
	nonSlugRun  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify derives a slug from a title: lowercase, runs of characters outside
// [a-z0-9] collapse to a single '-', leading and trailing '-' trimmed, capped
// at MaxSlugLen. A title with no usable characters yields "task".
func Slugify(title string) string {
	s := nonSlugRun.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if len(s) > MaxSlugLen {
		s = strings.TrimRight(s[:MaxSlugLen], "-")
	}
	if s == "" {
		return "task"
	}
	return s
}

// IsValidSlug reports whether s matches ^[a-z0-9-]+$ within the length limit.
func IsValidSlug(s string) bool {
	return len(s) >= 1 && len(s) <= MaxSlugLen && slugPattern.MatchString(s)
}
