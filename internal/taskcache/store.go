// Package taskcache keeps an in-memory mirror of the task collection for a
// client UI. Mutations are applied optimistically and confirmed or reverted
// once the server answers; background refreshes are merged without dropping
// in-flight operations.
//
// Operations on different ids run concurrently. Operations on the same id
// are not serialized: only the most recent one owns the pending slot, so an
// older operation that resolves late neither confirms nor reverts over it.
// Server confirmation order is whatever the network delivers.
package taskcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Strob0t/taskdeck/internal/domain"
	"github.com/Strob0t/taskdeck/internal/domain/task"
)

// API is the server surface the cache needs.
type API interface {
	ListAll(ctx context.Context, q task.ListQuery) ([]task.Task, error)
	Create(ctx context.Context, req task.CreateRequest, idempotencyKey string) (*task.Task, error)
	Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error)
	Delete(ctx context.Context, id string) error
}

// OpKind tags a pending operation.
type OpKind int

const (
	OpCreate OpKind = iota + 1
	OpUpdate
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	}
	return "unknown"
}

// OpState is the lifecycle of one operation: issued, then confirmed or reverted.
type OpState int

const (
	OpIssued OpState = iota
	OpConfirmed
	OpReverted
)

func (s OpState) String() string {
	switch s {
	case OpConfirmed:
		return "confirmed"
	case OpReverted:
		return "reverted"
	}
	return "issued"
}

// pendingOp is the in-flight operation owning an id.
type pendingOp struct {
	seq    uint64
	kind   OpKind
	before *task.Task // nil for creates
	index  int        // position of before, for delete reverts
}

// OpEvent describes one transition of an operation.
type OpEvent struct {
	ID    string // task id, or the temporary id of a create
	Kind  OpKind
	State OpState
	Err   error // set when State is OpReverted
}

// Snapshot is what listeners receive after every state change. Op is set
// when the change came from an operation transition, nil for refreshes.
type Snapshot struct {
	Tasks   []*task.Task
	Pending map[string]OpKind
	Loading bool
	Err     error
	Op      *OpEvent
}

// Store is the client task cache. The zero value is not usable; call New.
//
// Records handed out are shared with the cache and must be treated as
// read-only; every change replaces the pointer.
type Store struct {
	api API
	now func() time.Time

	mu        sync.Mutex
	tasks     []*task.Task
	pending   map[string]*pendingOp
	seq       uint64
	loading   bool
	err       error
	loadedAt  time.Time
	listeners map[uint64]func(Snapshot)
	nextLis   uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source for optimistic records.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// New creates an empty Store backed by api.
func New(api API, opts ...Option) *Store {
	s := &Store{
		api:       api,
		now:       task.Now,
		pending:   make(map[string]*pendingOp),
		listeners: make(map[uint64]func(Snapshot)),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Tasks returns the current collection, newest update first.
func (s *Store) Tasks() []*task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*task.Task(nil), s.tasks...)
}

// Get returns the cached record for id.
func (s *Store) Get(id string) (*task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i], true
	}
	return nil, false
}

// TasksByStatus groups the collection by status, keeping order.
func (s *Store) TasksByStatus() map[task.Status][]*task.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[task.Status][]*task.Task, len(task.Statuses()))
	for _, st := range task.Statuses() {
		out[st] = nil
	}
	for _, t := range s.tasks {
		out[t.Status] = append(out[t.Status], t)
	}
	return out
}

// Pending reports the kind of the in-flight operation owning id.
func (s *Store) Pending(id string) (OpKind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.pending[id]; ok {
		return op.kind, true
	}
	return 0, false
}

// Err returns the error of the last failed refresh, or nil once a refresh
// succeeds. A failed refresh never clears the collection.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// LoadedAt returns when the last successful refresh completed.
func (s *Store) LoadedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadedAt
}

// Subscribe registers fn for state changes and returns a function that
// removes it. fn is called without the cache lock held.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextLis
	s.nextLis++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Refresh fetches the full collection and merges it into the cache.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	s.notify(nil)

	incoming, err := s.api.ListAll(ctx, task.ListQuery{})

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err
	} else {
		s.err = nil
		s.tasks = s.merge(incoming)
		s.loadedAt = s.now()
	}
	s.mu.Unlock()
	s.notify(nil)

	if err != nil {
		return fmt.Errorf("refresh tasks: %w", err)
	}
	return nil
}

// Create inserts an optimistic record under a temporary id, then replaces it
// with the server record. Each call sends a fresh uuid as the idempotency key;
// the temporary id is only unique within this Store.
func (s *Store) Create(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.seq++
	seq := s.seq
	tempID := fmt.Sprintf("temp-%d", seq)
	d := req.Draft()
	now := s.now()
	s.tasks = append([]*task.Task{{
		ID: tempID, Slug: d.Slug, Title: d.Title, Status: d.Status, Project: d.Project,
		Created: now, Updated: now, Content: d.Content,
	}}, s.tasks...)
	s.pending[tempID] = &pendingOp{seq: seq, kind: OpCreate}
	s.mu.Unlock()
	s.notify(&OpEvent{ID: tempID, Kind: OpCreate, State: OpIssued})

	created, err := s.api.Create(ctx, req, task.NewID())

	s.mu.Lock()
	delete(s.pending, tempID)
	i := s.indexOf(tempID)
	switch {
	case err != nil:
		if i >= 0 {
			s.tasks = remove(s.tasks, i)
		}
	case i < 0:
		s.tasks = append([]*task.Task{created}, s.tasks...)
	case s.indexOf(created.ID) >= 0:
		// a refresh already brought the server record in
		s.tasks = remove(s.tasks, i)
		s.tasks[s.indexOf(created.ID)] = created
	default:
		s.tasks[i] = created
	}
	s.mu.Unlock()
	s.notify(outcome(tempID, OpCreate, err))

	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update applies req locally, then replaces the record with the server's
// answer. On failure the exact pre-operation record is restored.
func (s *Store) Update(ctx context.Context, id string, req task.UpdateRequest) (*task.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, domain.NewError(domain.ErrNotFound, domain.CodeNotFound, "taskcache.Update", "task not in cache: "+id)
	}
	s.seq++
	op := &pendingOp{seq: s.seq, kind: OpUpdate, before: s.tasks[i]}
	next := op.before.Clone()
	req.Patch().Apply(next)
	s.tasks[i] = next
	s.pending[id] = op
	s.mu.Unlock()
	s.notify(&OpEvent{ID: id, Kind: OpUpdate, State: OpIssued})

	updated, err := s.api.Update(ctx, id, req)

	s.mu.Lock()
	if s.owns(id, op) {
		delete(s.pending, id)
		if j := s.indexOf(id); j >= 0 {
			if err != nil {
				s.tasks[j] = op.before
			} else {
				s.tasks[j] = updated
			}
		}
	}
	s.mu.Unlock()
	s.notify(outcome(id, OpUpdate, err))

	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes the record locally, then on the server. On failure the
// record is reinserted at its previous position.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return domain.NewError(domain.ErrNotFound, domain.CodeNotFound, "taskcache.Delete", "task not in cache: "+id)
	}
	s.seq++
	op := &pendingOp{seq: s.seq, kind: OpDelete, before: s.tasks[i], index: i}
	s.tasks = remove(s.tasks, i)
	s.pending[id] = op
	s.mu.Unlock()
	s.notify(&OpEvent{ID: id, Kind: OpDelete, State: OpIssued})

	err := s.api.Delete(ctx, id)

	s.mu.Lock()
	if s.owns(id, op) {
		delete(s.pending, id)
		if err != nil && s.indexOf(id) < 0 {
			s.tasks = insert(s.tasks, min(op.index, len(s.tasks)), op.before)
		}
	}
	s.mu.Unlock()
	s.notify(outcome(id, OpDelete, err))

	return err
}

// merge combines a server listing with the local state. Must be called with
// s.mu held.
//
// Per id: a pending operation keeps the local version (or local absence for
// deletes); an incoming record equal on status, title and updated keeps the
// existing pointer; anything else is replaced. Local records with a pending
// create or update that the server did not return are kept ahead of the
// server list.
func (s *Store) merge(incoming []task.Task) []*task.Task {
	local := make(map[string]*task.Task, len(s.tasks))
	for _, t := range s.tasks {
		local[t.ID] = t
	}

	seen := make(map[string]bool, len(incoming))
	merged := make([]*task.Task, 0, len(incoming)+len(s.pending))
	for i := range incoming {
		in := &incoming[i]
		seen[in.ID] = true
		cur := local[in.ID]

		if op, ok := s.pending[in.ID]; ok {
			if op.kind == OpDelete {
				continue
			}
			if cur != nil {
				merged = append(merged, cur)
				continue
			}
		}
		if cur != nil && cur.Status == in.Status && cur.Title == in.Title && cur.Updated.Equal(in.Updated) {
			merged = append(merged, cur)
			continue
		}
		merged = append(merged, in.Clone())
	}

	var kept []*task.Task
	for _, t := range s.tasks {
		if op, ok := s.pending[t.ID]; ok && op.kind != OpDelete && !seen[t.ID] {
			kept = append(kept, t)
		}
	}
	return append(kept, merged...)
}

// owns reports whether op still holds the pending slot for id. Must be
// called with s.mu held.
func (s *Store) owns(id string, op *pendingOp) bool {
	return s.pending[id] == op
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) notify(op *OpEvent) {
	s.mu.Lock()
	snap := Snapshot{
		Tasks:   append([]*task.Task(nil), s.tasks...),
		Pending: make(map[string]OpKind, len(s.pending)),
		Loading: s.loading,
		Err:     s.err,
		Op:      op,
	}
	for id, p := range s.pending {
		snap.Pending[id] = p.kind
	}
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func outcome(id string, kind OpKind, err error) *OpEvent {
	if err != nil {
		return &OpEvent{ID: id, Kind: kind, State: OpReverted, Err: err}
	}
	return &OpEvent{ID: id, Kind: kind, State: OpConfirmed}
}

func remove(ts []*task.Task, i int) []*task.Task {
	out := make([]*task.Task, 0, len(ts)-1)
	out = append(out, ts[:i]...)
	return append(out, ts[i+1:]...)
}

func insert(ts []*task.Task, i int, t *task.Task) []*task.Task {
	out := make([]*task.Task, 0, len(ts)+1)
	out = append(out, ts[:i]...)
	out = append(out, t)
	return append(out, ts[i:]...)
}
