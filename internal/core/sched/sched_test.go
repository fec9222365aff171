package sched

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-quicktest/qt"

	"github.com/tylang/tycore/internal/core/db"
	"github.com/tylang/tycore/internal/core/diag"
	"github.com/tylang/tycore/internal/core/vfs"
)

func allFirstParty(vfs.FileID) vfs.Kind { return vfs.KindFirstParty }

func diagFor(f vfs.FileID) diag.Diagnostic {
	return diag.Diagnostic{ID: fmt.Sprintf("d%d", f), Primary: diag.Annotation{Span: diag.Span{File: f}}}
}

func TestCheckSerialVisitsTransitiveFirstPartyDependents(t *testing.T) {
	deps := map[vfs.FileID][]vfs.FileID{1: {2}, 2: {3}, 3: nil}
	s := New(db.New(nil), Serial, allFirstParty)

	diags, err := s.Check(context.Background(), []vfs.FileID{1}, func(ctx *db.Ctx, f vfs.FileID) (TaskResult, error) {
		return TaskResult{File: f, Diagnostics: []diag.Diagnostic{diagFor(f)}, Dependents: deps[f]}, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(diags, 3))
	qt.Assert(t, qt.Equals(s.State(), Completed))

	var ids []string
	for _, d := range diags {
		ids = append(ids, d.ID)
	}
	qt.Assert(t, qt.Contains(ids, "d1"))
	qt.Assert(t, qt.Contains(ids, "d2"))
	qt.Assert(t, qt.Contains(ids, "d3"))
}

func TestCheckDedupesSharedDependent(t *testing.T) {
	var mu sync.Mutex
	counts := map[vfs.FileID]int{}
	deps := map[vfs.FileID][]vfs.FileID{1: {3}, 2: {3}, 3: nil}
	s := New(db.New(nil), Serial, allFirstParty)

	_, err := s.Check(context.Background(), []vfs.FileID{1, 2}, func(ctx *db.Ctx, f vfs.FileID) (TaskResult, error) {
		mu.Lock()
		counts[f]++
		mu.Unlock()
		return TaskResult{File: f, Dependents: deps[f]}, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(counts[3], 1))
	qt.Assert(t, qt.Equals(counts[1], 1))
	qt.Assert(t, qt.Equals(counts[2], 1))
}

func TestCheckSkipsNonFirstPartyDependents(t *testing.T) {
	var mu sync.Mutex
	visited := map[vfs.FileID]bool{}
	classify := func(f vfs.FileID) vfs.Kind {
		if f == 2 {
			return vfs.KindThirdParty
		}
		return vfs.KindFirstParty
	}
	s := New(db.New(nil), Serial, classify)

	_, err := s.Check(context.Background(), []vfs.FileID{1}, func(ctx *db.Ctx, f vfs.FileID) (TaskResult, error) {
		mu.Lock()
		visited[f] = true
		mu.Unlock()
		return TaskResult{File: f, Dependents: []vfs.FileID{2}}, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(visited[1]))
	qt.Assert(t, qt.IsFalse(visited[2]))
}

func TestCheckTaskErrorDropsResultWithoutFailingSession(t *testing.T) {
	s := New(db.New(nil), Serial, allFirstParty)
	diags, err := s.Check(context.Background(), []vfs.FileID{1}, func(ctx *db.Ctx, f vfs.FileID) (TaskResult, error) {
		return TaskResult{}, fmt.Errorf("boom")
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(diags, 0))
	qt.Assert(t, qt.Equals(s.State(), Completed))
}

func TestCheckDatabaseCancelledBeforeCheckReturnsErrCancelled(t *testing.T) {
	dbase := db.New(nil)
	dbase.Cancel()
	s := New(dbase, Serial, allFirstParty)

	called := false
	diags, err := s.Check(context.Background(), []vfs.FileID{1}, func(ctx *db.Ctx, f vfs.FileID) (TaskResult, error) {
		called = true
		return TaskResult{File: f}, nil
	})
	qt.Assert(t, qt.Equals(err, db.ErrCancelled))
	qt.Assert(t, qt.HasLen(diags, 0))
	qt.Assert(t, qt.IsFalse(called))
	qt.Assert(t, qt.Equals(s.State(), Cancelled))
}

func TestCheckParallelModeCompletesAllFiles(t *testing.T) {
	var mu sync.Mutex
	counts := map[vfs.FileID]int{}
	s := New(db.New(nil), Parallel, allFirstParty)

	files := []vfs.FileID{1, 2, 3, 4, 5}
	diags, err := s.Check(context.Background(), files, func(ctx *db.Ctx, f vfs.FileID) (TaskResult, error) {
		mu.Lock()
		counts[f]++
		mu.Unlock()
		return TaskResult{File: f, Diagnostics: []diag.Diagnostic{diagFor(f)}}, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(diags, 5))
	for _, f := range files {
		qt.Assert(t, qt.Equals(counts[f], 1))
	}
}

func TestCheckParallelModeHandlesSeedCountAboveWorkerLimit(t *testing.T) {
	// Regression: Check used to submit every seed file synchronously
	// before ever entering the message-draining loop, so once the seed
	// count passed roughly 2x the worker pool's concurrency, the
	// submitting goroutine would block forever inside errgroup.Go()
	// waiting for a slot that only the (never-reached) draining loop
	// could free. A count well above any real NumCPU()*2 exercises that
	// path without actually hanging the test if the fix regresses, since
	// the select below fails the test after ten seconds rather than
	// deadlocking silently.
	const fileCount = 500
	var mu sync.Mutex
	counts := map[vfs.FileID]int{}
	s := New(db.New(nil), Parallel, allFirstParty)

	files := make([]vfs.FileID, fileCount)
	for i := range files {
		files[i] = vfs.FileID(i + 1)
	}

	done := make(chan struct{})
	var diags []diag.Diagnostic
	var err error
	go func() {
		diags, err = s.Check(context.Background(), files, func(ctx *db.Ctx, f vfs.FileID) (TaskResult, error) {
			mu.Lock()
			counts[f]++
			mu.Unlock()
			return TaskResult{File: f, Diagnostics: []diag.Diagnostic{diagFor(f)}}, nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("Check deadlocked with %d seed files in Parallel mode", fileCount)
	}

	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(diags, fileCount))
	for _, f := range files {
		qt.Assert(t, qt.Equals(counts[f], 1))
	}
}

func TestCheckResultsAreSortedByFile(t *testing.T) {
	s := New(db.New(nil), Serial, allFirstParty)
	diags, err := s.Check(context.Background(), []vfs.FileID{3, 1, 2}, func(ctx *db.Ctx, f vfs.FileID) (TaskResult, error) {
		return TaskResult{File: f, Diagnostics: []diag.Diagnostic{diagFor(f)}}, nil
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(diags, 3))
	qt.Assert(t, qt.Equals(diags[0].Primary.Span.File, vfs.FileID(1)))
	qt.Assert(t, qt.Equals(diags[1].Primary.Span.File, vfs.FileID(2)))
	qt.Assert(t, qt.Equals(diags[2].Primary.Span.File, vfs.FileID(3)))
}
