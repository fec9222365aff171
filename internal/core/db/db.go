// Package db implements the revisioned, memoized query database described
// in spec.md §4.1: a pure query graph with automatic invalidation and
// cooperative cancellation, grounded on the revision/version bookkeeping
// in the teacher's internal/lsp/cache and internal/lsp/fscache packages.
package db

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Revision is a monotonically increasing counter bumped by every call to
// SetInput. All cached query results are stamped with the revision at
// which they were last verified.
type Revision uint64

// ErrCancelled is returned by any query that observes the cancellation
// flag while computing or re-verifying its result. It is the only error
// kind a query propagates out of band (spec.md §7).
var ErrCancelled = errors.New("db: query cancelled")

// InputKey identifies one external input cell (a file's content, the
// search-path configuration, the target Python version, ...).
type InputKey any

// QueryKey identifies one memoized computation and its arguments.
type QueryKey any

type entry struct {
	value        any
	err          error
	verifiedAt   Revision
	inputsRead   map[InputKey]struct{}
}

// Database is the single authoritative shared resource described in
// spec.md §5: reads are safely shareable, writes require acquiring
// exclusive access via SetInput, which first cancels all outstanding
// reads.
type Database struct {
	log *slog.Logger

	mu       sync.RWMutex
	revision Revision
	inputs   map[InputKey]any
	cache    map[QueryKey]*entry
	// dependents maps an input key to the set of query keys whose last
	// computation read it, so SetInput can invalidate precisely.
	dependents map[InputKey]map[QueryKey]struct{}

	cancelled atomic.Bool
}

// New creates an empty Database. A nil logger disables debug logging.
func New(log *slog.Logger) *Database {
	if log == nil {
		log = slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
	}
	return &Database{
		log:        log,
		inputs:     make(map[InputKey]any),
		cache:      make(map[QueryKey]*entry),
		dependents: make(map[InputKey]map[QueryKey]struct{}),
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Revision returns the database's current revision.
func (d *Database) Revision() Revision {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

// Input returns the current value of an input cell, and whether it has
// ever been set.
func (d *Database) Input(key InputKey) (any, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.inputs[key]
	return v, ok
}

// SetInput replaces an input cell, bumps the revision, and invalidates
// every cached query that read this input the last time it ran. Taking
// this mutable path first cancels all outstanding reads (spec.md §4.1,
// §5), guaranteeing no concurrent query observes a torn input set.
func (d *Database) SetInput(key InputKey, value any) {
	d.cancelled.Store(true)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.revision++
	d.inputs[key] = value

	if deps, ok := d.dependents[key]; ok {
		for qk := range deps {
			delete(d.cache, qk)
		}
		delete(d.dependents, key)
	}

	d.cancelled.Store(false)
	d.log.Debug("db: input set", "key", key, "revision", d.revision)
}

// Cancel atomically flips the cancellation flag. Any in-flight query that
// checks Cancelled() (via the *Ctx passed to its compute function) fails
// with ErrCancelled. A subsequent SetInput or Reset clears the flag.
func (d *Database) Cancel() {
	d.cancelled.Store(true)
}

// Reset clears the cancellation flag without touching cached state. It is
// the counterpart to Cancel when a caller wants to resume querying the
// same revision (e.g. after voluntarily cancelling to reprioritize work).
func (d *Database) Reset() {
	d.cancelled.Store(false)
}

// Cancelled reports whether cancellation has been requested.
func (d *Database) Cancelled() bool {
	return d.cancelled.Load()
}

// Ctx is threaded through a query's compute function so it can check for
// cancellation and record which inputs it read.
type Ctx struct {
	db     *Database
	inputs map[InputKey]struct{}
}

// ReadInput records a read of key (for invalidation bookkeeping) and
// returns its current value.
func (c *Ctx) ReadInput(key InputKey) (any, bool) {
	c.inputs[key] = struct{}{}
	return c.db.Input(key)
}

// Cancelled reports whether the enclosing query should abort.
func (c *Ctx) Cancelled() bool {
	return c.db.Cancelled()
}

// CheckCancelled is a convenience wrapper returning ErrCancelled when
// cancellation has been requested, for use at natural suspension points
// (query entry, between DAG children, between scheduler messages; spec §5).
func (c *Ctx) CheckCancelled() error {
	if c.db.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// GetOrCompute returns the memoized value for key if it is still valid at
// the database's current revision, otherwise invokes compute, memoizing
// both the result and the set of inputs compute read along the way.
//
// Because every cached entry's inputsRead set is a subset of all inputs,
// a revision bump that does not touch any of those inputs leaves the
// cache entry valid without recomputation: SetInput only invalidated the
// entries that depended on the input it changed.
func GetOrCompute[V any](d *Database, key QueryKey, compute func(*Ctx) (V, error)) (V, error) {
	d.mu.RLock()
	if e, ok := d.cache[key]; ok {
		v, _ := e.value.(V)
		err := e.err
		d.mu.RUnlock()
		return v, err
	}
	d.mu.RUnlock()

	if d.Cancelled() {
		var zero V
		return zero, ErrCancelled
	}

	ctx := &Ctx{db: d, inputs: make(map[InputKey]struct{})}
	value, err := compute(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[key] = &entry{
		value:      value,
		err:        err,
		verifiedAt: d.revision,
		inputsRead: ctx.inputs,
	}
	for ik := range ctx.inputs {
		deps, ok := d.dependents[ik]
		if !ok {
			deps = make(map[QueryKey]struct{})
			d.dependents[ik] = deps
		}
		deps[key] = struct{}{}
	}
	return value, err
}

// Intern is a hash-consing table returning a stable dense id for each
// distinct value of T seen, matching the teacher's string/feature
// interning pattern (spec.md §4.1 "Interning").
type Intern[T comparable] struct {
	mu   sync.Mutex
	ids  map[T]int
	vals []T
}

// NewIntern creates an empty interning table.
func NewIntern[T comparable]() *Intern[T] {
	return &Intern[T]{ids: make(map[T]int)}
}

// GetOrInsert returns the stable id for v, assigning a new one if v has
// not been seen before.
func (in *Intern[T]) GetOrInsert(v T) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.ids[v]; ok {
		return id
	}
	id := len(in.vals)
	in.vals = append(in.vals, v)
	in.ids[v] = id
	return id
}

// Value returns the value interned at id.
func (in *Intern[T]) Value(id int) T {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.vals[id]
}

// Len reports how many distinct values have been interned.
func (in *Intern[T]) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.vals)
}

// Snapshot is a read-only handle on the database fixed at the revision it
// was created at (spec.md §4.1 "snapshot"). Queries performed through a
// Snapshot either complete against that revision or observe cancellation;
// they never see a later SetInput's effects.
type Snapshot struct {
	db       *Database
	revision Revision
}

// Snapshot produces a new read-only handle at the database's current
// revision, safe to hand to worker-pool goroutines.
func (d *Database) Snapshot() *Snapshot {
	return &Snapshot{db: d, revision: d.Revision()}
}

// Revision returns the revision this snapshot is pinned to.
func (s *Snapshot) Revision() Revision { return s.revision }

// Stale reports whether the underlying database has advanced past the
// snapshot's revision.
func (s *Snapshot) Stale() bool { return s.db.Revision() != s.revision }

// GetOrComputeSnapshot evaluates a query through a snapshot: if the
// snapshot is stale, or cancellation is observed, it returns
// ErrCancelled rather than silently reading newer state.
func GetOrComputeSnapshot[V any](s *Snapshot, key QueryKey, compute func(*Ctx) (V, error)) (V, error) {
	var zero V
	if s.Stale() || s.db.Cancelled() {
		return zero, ErrCancelled
	}
	return GetOrCompute(s.db, key, compute)
}
