// Package sched implements the Check Scheduler (spec.md §4.8): driving
// semantic checking over a set of seed files and their transitive
// first-party dependencies, either inline on the caller's goroutine or
// fanned out across a worker pool. Its message-passing session loop is
// grounded on the teacher's internal/lsp/cache.Workspace orchestration
// (a long-lived session object that drives per-file work and reacts to
// a stream of events), and its worker pool uses golang.org/x/sync/errgroup
// the way the teacher's module-loading code bounds concurrent fetches.
package sched

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/tylang/tycore/internal/core/db"
	"github.com/tylang/tycore/internal/core/diag"
	"github.com/tylang/tycore/internal/core/vfs"
)

// State is the lifecycle of one scheduling session (spec.md §4.8
// "States of a scheduling session").
type State int

const (
	Idle State = iota
	Running
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Mode selects how Check dispatches file tasks (spec.md §5 "Scheduling
// model").
type Mode int

const (
	// Serial runs every task inline on the calling goroutine
	// (spec.md §5 "Single-threaded cooperative").
	Serial Mode = iota
	// Parallel runs tasks on a fixed worker pool, through a channel
	// bounded to the pool's concurrency to avoid unbounded buffering
	// (spec.md §5 "Parallel threads").
	Parallel
)

// TaskResult is what one file's check task reports back to the
// scheduling loop: its diagnostics, and the first-party dependency
// files it wants queued next (spec.md §4.8 "reports the dependency
// module names its semantic index depends on").
type TaskResult struct {
	File        vfs.FileID
	Diagnostics []diag.Diagnostic
	Dependents  []vfs.FileID // already resolved to first-party FileIDs by the caller's task function
}

// Task checks one file and reports its result, or an error (only
// db.ErrCancelled is expected).
type Task func(ctx *db.Ctx, file vfs.FileID) (TaskResult, error)

// message is the internal sum type flowing from task goroutines back to
// the session loop (spec.md §4.8 "Message protocol":
// Completed | Queue | Cancelled).
type message struct {
	kind    msgKind
	result  TaskResult
	taskErr error
}

type msgKind int

const (
	msgCompleted msgKind = iota
	msgCancelled
)

// Session drives one Check call: dedups files, tracks pending count, and
// terminates on either zero-pending or cancellation (spec.md §4.8).
type Session struct {
	db    *db.Database
	mode  Mode
	state State

	classify func(vfs.FileID) vfs.Kind // resolves a file's provenance, for the third-party "index only" rule
}

// New creates a Session in Idle state. classify is consulted to decide
// whether a dependency file should be checked (first-party) or merely
// indexed (spec.md §4.8 "Ordering": "Dependencies that are not
// first-party are indexed only").
func New(database *db.Database, mode Mode, classify func(vfs.FileID) vfs.Kind) *Session {
	return &Session{db: database, mode: mode, classify: classify}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Check runs task over files and their transitive first-party
// dependencies, deduplicating so each file is scheduled at most once
// per session (spec.md §4.8 "Maintains a deduplicating set").
func (s *Session) Check(ctx context.Context, files []vfs.FileID, task Task) ([]diag.Diagnostic, error) {
	s.state = Running

	queued := make(map[vfs.FileID]bool, len(files))

	var msgs chan message
	var eg *errgroup.Group
	var q *unboundedQueue
	var run func(f vfs.FileID, body func() message)
	var onDrain func() // called once per message consumed by the loop below

	if s.mode == Parallel {
		// Self-throttled instead of relying on errgroup.SetLimit to block
		// Go() once `workers` goroutines are in flight: the seed files are
		// all submitted synchronously, before this same goroutine ever
		// reaches the draining select loop below, so a blocking Go() call
		// made from here would wait for a free slot that can only open up
		// by a goroutine finishing its send on msgs — which nothing is
		// receiving from yet. Tracking inFlight ourselves and queueing the
		// rest to backlog means Go() is only ever called when a slot is
		// already known to be free, so it never blocks this goroutine.
		workers := max(runtime.NumCPU(), 1)
		msgs = make(chan message, workers)
		eg = &errgroup.Group{}
		var backlog []func() message
		inFlight := 0
		launchNext := func() {
			for inFlight < workers && len(backlog) > 0 {
				body := backlog[0]
				backlog = backlog[1:]
				inFlight++
				eg.Go(func() error { msgs <- body(); return nil })
			}
		}
		run = func(_ vfs.FileID, body func() message) {
			backlog = append(backlog, body)
			launchNext()
		}
		onDrain = func() {
			inFlight--
			launchNext()
		}
	} else {
		// Serial runs body() inline on this same goroutine, so a raw
		// bounded channel send from inside body() could block on its own
		// unread message the moment a task's dependents push the
		// backlog past capacity (submit() is called recursively from
		// within the draining loop below, before that loop returns to
		// read the next message). Routing the send through an
		// unboundedQueue instead means it can never block.
		q = newUnboundedQueue()
		msgs = q.recvChan
		run = func(_ vfs.FileID, body func() message) { q.send(body()) }
		onDrain = q.drainOne
	}

	pending := 0
	submit := func(f vfs.FileID) {
		if queued[f] {
			return
		}
		queued[f] = true
		pending++
		run(f, func() message {
			if s.db.Cancelled() {
				return message{kind: msgCancelled}
			}
			result, err := runTask(s.db, task, f)
			if err != nil {
				if err == db.ErrCancelled {
					return message{kind: msgCancelled}
				}
				return message{kind: msgCompleted, result: TaskResult{File: f}, taskErr: err}
			}
			return message{kind: msgCompleted, result: result}
		})
	}

	for _, f := range files {
		submit(f)
	}

	var out []diag.Diagnostic
	cancelled := false
	for pending > 0 {
		select {
		case <-ctx.Done():
			s.db.Cancel()
			cancelled = true
		case m := <-msgs:
			onDrain()
			pending--
			switch m.kind {
			case msgCancelled:
				cancelled = true
			case msgCompleted:
				if m.taskErr == nil {
					out = append(out, m.result.Diagnostics...)
					for _, dep := range m.result.Dependents {
						if s.classify == nil || s.classify(dep) == vfs.KindFirstParty {
							submit(dep)
						}
						// Non-first-party dependencies are resolved and
						// indexed by the caller's task function already;
						// they are never separately scheduled for
						// checking (spec.md §4.8 "indexed only").
					}
				}
			}
		}
		if cancelled {
			break
		}
	}

	if s.mode == Parallel && eg != nil {
		eg.Wait()
	}

	if cancelled {
		s.state = Cancelled
		diag.Sort(out)
		return out, db.ErrCancelled
	}
	s.state = Completed
	diag.Sort(out)
	return out, nil
}

func runTask(database *db.Database, task Task, f vfs.FileID) (TaskResult, error) {
	if database.Cancelled() {
		return TaskResult{}, db.ErrCancelled
	}
	// Tasks see the database through the normal query surface
	// (GetOrCompute et al.), not a raw Ctx, since a task may itself
	// invoke several independent memoized queries (parse, index,
	// resolve) rather than being one query itself.
	return db.GetOrCompute(database, taskQueryKey{f}, func(ctx *db.Ctx) (TaskResult, error) {
		return task(ctx, f)
	})
}

type taskQueryKey struct{ file vfs.FileID }
