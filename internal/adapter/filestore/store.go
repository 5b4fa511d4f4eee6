// Package filestore implements the taskstore port on a directory of
// markdown files, one per task, confined to a sandbox root.
package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/Strob0t/taskdeck/internal/adapter/markdown"
	"github.com/Strob0t/taskdeck/internal/domain"
	"github.com/Strob0t/taskdeck/internal/domain/task"
	"github.com/Strob0t/taskdeck/internal/port/cache"
	"github.com/Strob0t/taskdeck/internal/port/taskstore"
	"github.com/Strob0t/taskdeck/internal/sandbox"
)

const (
	// MaxRecordBytes caps the size of one serialized record.
	MaxRecordBytes = 10 << 20

	filePerm = 0o644
	dirPerm  = 0o755

	decodedTTL = 10 * time.Minute
)

// Store is a file-backed task store.
//
// Writes are atomic per record but there is no lock over the directory:
// concurrent updates of the same record are last-writer-wins.
type Store struct {
	sb    *sandbox.Sandbox
	fs    FS
	cache cache.Cache
	now   func() time.Time
}

var _ taskstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithFS substitutes the filesystem implementation.
func WithFS(fsys FS) Option { return func(s *Store) { s.fs = fsys } }

// WithCache memoizes decoded records keyed by file name, mtime and size.
func WithCache(c cache.Cache) Option { return func(s *Store) { s.cache = c } }

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New creates a Store rooted at the sandbox.
func New(sb *sandbox.Sandbox, opts ...Option) *Store {
	s := &Store{sb: sb, fs: OSFS{}, now: task.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// EnsureDirectory creates the tasks directory if needed.
func (s *Store) EnsureDirectory(_ context.Context) error {
	dir, err := s.sb.TasksDirectory()
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
		return domain.Wrap(domain.ErrStorage, domain.CodeDirectoryCreate, "filestore.EnsureDirectory",
			fmt.Errorf("create tasks directory: %w", err))
	}
	return nil
}

// ListTasks returns every decodable record, newest update first. Files that
// fail to decode are logged and skipped. A missing directory yields an empty list.
func (s *Store) ListTasks(ctx context.Context) ([]task.Task, error) {
	const op = "filestore.ListTasks"

	dir, err := s.sb.TasksDirectory()
	if err != nil {
		return nil, err
	}
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []task.Task{}, nil
		}
		return nil, domain.Wrap(domain.ErrStorage, domain.CodeListFailed, op, err)
	}

	tasks := make([]task.Task, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !sandbox.IsTaskFileName(name) {
			continue
		}
		p, err := s.sb.ResolveRelativePath(filepath.Join("tasks", name))
		if err != nil {
			slog.Warn("skipping task file outside sandbox", "file", name, "error", err)
			continue
		}
		t, err := s.load(ctx, p, name)
		if err != nil {
			slog.Warn("skipping unreadable task file", "file", name, "error", err)
			continue
		}
		tasks = append(tasks, t)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].Updated.Equal(tasks[j].Updated) {
			return tasks[i].Updated.After(tasks[j].Updated)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

// GetTask reads one record.
func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	const op = "filestore.GetTask"

	p, err := s.sb.ResolveTaskPath(id)
	if err != nil {
		return nil, err
	}
	t, err := s.load(ctx, p, sandbox.TaskFileName(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewError(domain.ErrNotFound, domain.CodeNotFound, op, "task not found")
		}
		return nil, domain.Wrap(domain.ErrStorage, domain.CodeGetFailed, op, err)
	}
	return &t, nil
}

// CreateTask assigns an id and timestamps and writes the record.
func (s *Store) CreateTask(ctx context.Context, draft task.Draft) (*task.Task, error) {
	const op = "filestore.CreateTask"

	if err := s.EnsureDirectory(ctx); err != nil {
		return nil, err
	}
	now := s.now()
	t := &task.Task{
		ID:      task.NewID(),
		Slug:    draft.Slug,
		Title:   draft.Title,
		Status:  draft.Status,
		Project: draft.Project,
		Created: now,
		Updated: now,
		Content: draft.Content,
	}
	p, err := s.sb.ResolveTaskPath(t.ID)
	if err != nil {
		return nil, err
	}
	if err := s.write(p, t, op, domain.CodeCreateFailed); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTask applies patch to the stored record. The new Updated timestamp
// is strictly after the previous one even when the clock has not advanced.
func (s *Store) UpdateTask(ctx context.Context, id string, patch task.Patch) (*task.Task, error) {
	const op = "filestore.UpdateTask"

	cur, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(cur)

	now := s.now()
	if !now.After(cur.Updated) {
		now = cur.Updated.Add(time.Millisecond)
	}
	cur.Updated = now

	p, err := s.sb.ResolveTaskPath(id)
	if err != nil {
		return nil, err
	}
	if err := s.write(p, cur, op, domain.CodeUpdateFailed); err != nil {
		return nil, err
	}
	return cur, nil
}

// DeleteTask removes the record.
func (s *Store) DeleteTask(_ context.Context, id string) error {
	const op = "filestore.DeleteTask"

	p, err := s.sb.ResolveTaskPath(id)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewError(domain.ErrNotFound, domain.CodeNotFound, op, "task not found")
		}
		return domain.Wrap(domain.ErrStorage, domain.CodeDeleteFailed, op, err)
	}
	return nil
}

// TaskStats returns file metadata for a record.
func (s *Store) TaskStats(_ context.Context, id string) (*task.Stats, error) {
	const op = "filestore.TaskStats"

	p, err := s.sb.ResolveTaskPath(id)
	if err != nil {
		return nil, err
	}
	fi, err := s.fs.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewError(domain.ErrNotFound, domain.CodeNotFound, op, "task not found")
		}
		return nil, domain.Wrap(domain.ErrStorage, domain.CodeStatsFailed, op, err)
	}
	return &task.Stats{ModifiedTime: fi.ModTime().UTC(), Size: fi.Size()}, nil
}

func (s *Store) write(path string, t *task.Task, op, code string) error {
	data, err := markdown.Encode(t)
	if err != nil {
		return domain.Wrap(domain.ErrStorage, code, op, err)
	}
	if err := ValidateContent(data); err != nil {
		return err
	}
	if err := s.fs.WriteFileAtomic(path, data, filePerm); err != nil {
		return domain.Wrap(domain.ErrStorage, code, op, err)
	}
	return nil
}

// load reads and decodes the record at path, consulting the decode cache
// when one is configured. Filesystem errors are returned unclassified.
func (s *Store) load(ctx context.Context, path, name string) (task.Task, error) {
	var key string
	if s.cache != nil {
		if fi, err := s.fs.Stat(path); err == nil {
			key = name + "|" + strconv.FormatInt(fi.ModTime().UnixNano(), 10) + "|" + strconv.FormatInt(fi.Size(), 10)
			if raw, ok, _ := s.cache.Get(ctx, key); ok {
				var t task.Task
				if json.Unmarshal(raw, &t) == nil {
					return t, nil
				}
			}
		}
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		return task.Task{}, err
	}
	t, err := markdown.Decode(data, name)
	if err != nil {
		return task.Task{}, err
	}

	if key != "" {
		if raw, err := json.Marshal(t); err == nil {
			_ = s.cache.Set(ctx, key, raw, decodedTTL)
		}
	}
	return t, nil
}

// ValidateContent rejects serialized records that contain NUL bytes or
// exceed MaxRecordBytes.
func ValidateContent(data []byte) error {
	const op = "filestore.ValidateContent"
	if bytes.IndexByte(data, 0) >= 0 {
		return domain.NewError(domain.ErrInvalidContent, domain.CodeInvalidContent, op, "content contains null bytes")
	}
	if len(data) > MaxRecordBytes {
		return domain.NewError(domain.ErrInvalidContent, domain.CodeInvalidContent, op,
			fmt.Sprintf("content exceeds maximum size of %d bytes", MaxRecordBytes))
	}
	return nil
}
