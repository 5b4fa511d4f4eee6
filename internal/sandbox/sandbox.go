// Package sandbox confines every filesystem path the store touches to a single
// root directory.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Strob0t/taskdeck/internal/domain"
	"github.com/Strob0t/taskdeck/internal/domain/task"
)

const (
	tasksDir       = "tasks"
	taskFilePrefix = "task-"
	taskFileSuffix = ".md"
)

// Sandbox resolves caller-supplied relative paths against a fixed root.
// It holds no mutable state; every call re-validates from scratch.
type Sandbox struct {
	root string
}

// New returns a Sandbox rooted at root. The root is made absolute and its
// existing ancestors are symlink-resolved. It does not need to exist yet.
func New(root string) (*Sandbox, error) {
	if root == "" {
		return nil, errors.New("sandbox: root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve root: %w", err)
	}
	resolved, err := resolveExisting(abs)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve root: %w", err)
	}
	return &Sandbox{root: resolved}, nil
}

// Root returns the resolved sandbox root.
func (s *Sandbox) Root() string { return s.root }

// ResolveRelativePath maps input to an absolute path inside the root.
//
// Absolute inputs fail with ABSOLUTE_PATH, inputs that climb above the root
// with PATH_TRAVERSAL, and inputs whose symlink-resolved location lies
// outside the root with SANDBOX_ESCAPE. All three wrap domain.ErrPathViolation.
func (s *Sandbox) ResolveRelativePath(input string) (string, error) {
	const op = "sandbox.ResolveRelativePath"

	if filepath.IsAbs(input) || filepath.VolumeName(input) != "" || strings.HasPrefix(input, "/") || strings.HasPrefix(input, `\`) {
		return "", domain.NewError(domain.ErrPathViolation, domain.CodeAbsolutePath, op, "absolute paths are not allowed")
	}
	if strings.ContainsRune(input, 0) {
		return "", domain.NewError(domain.ErrPathViolation, domain.CodePathTraversal, op, "path contains a NUL byte")
	}

	cleaned := filepath.Clean(filepath.FromSlash(input))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", domain.NewError(domain.ErrPathViolation, domain.CodePathTraversal, op, "path traversal detected")
	}

	full := filepath.Join(s.root, cleaned)
	resolved, err := resolveExisting(full)
	if err != nil {
		return "", domain.Wrap(domain.ErrStorage, domain.CodeInternal, op, err)
	}
	if !within(s.root, resolved) {
		return "", domain.NewError(domain.ErrPathViolation, domain.CodeSandboxEscape, op, "path escapes sandbox directory")
	}
	return resolved, nil
}

// ResolveTaskPath returns the location of the record for id. The id must be a
// canonical UUID v4, otherwise INVALID_UUID is returned.
func (s *Sandbox) ResolveTaskPath(id string) (string, error) {
	if !task.IsValidID(id) {
		return "", domain.NewError(domain.ErrInvalidIdentifier, domain.CodeInvalidUUID, "sandbox.ResolveTaskPath",
			"invalid task id format: must be a UUID v4")
	}
	return s.ResolveRelativePath(filepath.Join(tasksDir, TaskFileName(task.NormalizeID(id))))
}

// TasksDirectory returns the directory holding task records.
func (s *Sandbox) TasksDirectory() (string, error) {
	return s.ResolveRelativePath(tasksDir)
}

// TaskFileName returns the record file name for id.
func TaskFileName(id string) string {
	return taskFilePrefix + id + taskFileSuffix
}

// IsTaskFileName reports whether name looks like a task record.
func IsTaskFileName(name string) bool {
	return strings.HasPrefix(name, taskFilePrefix) && strings.HasSuffix(name, taskFileSuffix) &&
		len(name) > len(taskFilePrefix)+len(taskFileSuffix)
}

// within reports whether p equals root or lies beneath it on a path-segment
// boundary, so "/data-evil" is not inside "/data".
func within(root, p string) bool {
	if p == root {
		return true
	}
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// resolveExisting resolves symlinks in the deepest existing ancestor of p and
// re-attaches the not-yet-existing remainder.
func resolveExisting(p string) (string, error) {
	var tail []string
	cur := p
	for {
		if _, err := os.Lstat(cur); err == nil {
			real, err := filepath.EvalSymlinks(cur)
			if err != nil {
				return "", err
			}
			for i := len(tail) - 1; i >= 0; i-- {
				real = filepath.Join(real, tail[i])
			}
			return real, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return p, nil
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}
