package db

import (
	"testing"

	"github.com/go-quicktest/qt"
)

type fileKey string
type queryKey string

func TestGetOrComputeMemoizesUntilInputChanges(t *testing.T) {
	d := New(nil)
	d.SetInput(fileKey("a.py"), "x = 1")

	calls := 0
	compute := func(ctx *Ctx) (int, error) {
		calls++
		v, _ := ctx.ReadInput(fileKey("a.py"))
		return len(v.(string)), nil
	}

	v1, err := GetOrCompute(d, queryKey("len:a.py"), compute)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v1, 5))
	qt.Assert(t, qt.Equals(calls, 1))

	v2, err := GetOrCompute(d, queryKey("len:a.py"), compute)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v2, 5))
	qt.Assert(t, qt.Equals(calls, 1)) // cache hit, compute not invoked again
}

func TestSetInputInvalidatesOnlyDependentQueries(t *testing.T) {
	d := New(nil)
	d.SetInput(fileKey("a.py"), "aaa")
	d.SetInput(fileKey("b.py"), "bb")

	callsA, callsB := 0, 0
	computeA := func(ctx *Ctx) (int, error) {
		callsA++
		v, _ := ctx.ReadInput(fileKey("a.py"))
		return len(v.(string)), nil
	}
	computeB := func(ctx *Ctx) (int, error) {
		callsB++
		v, _ := ctx.ReadInput(fileKey("b.py"))
		return len(v.(string)), nil
	}

	GetOrCompute(d, queryKey("a"), computeA)
	GetOrCompute(d, queryKey("b"), computeB)
	qt.Assert(t, qt.Equals(callsA, 1))
	qt.Assert(t, qt.Equals(callsB, 1))

	d.SetInput(fileKey("a.py"), "aaaa")

	GetOrCompute(d, queryKey("a"), computeA)
	GetOrCompute(d, queryKey("b"), computeB)
	qt.Assert(t, qt.Equals(callsA, 2)) // re-ran: its input changed
	qt.Assert(t, qt.Equals(callsB, 1)) // untouched: its input didn't change
}

func TestCancelPropagatesErrCancelled(t *testing.T) {
	d := New(nil)
	d.Cancel()
	_, err := GetOrCompute(d, queryKey("x"), func(ctx *Ctx) (int, error) {
		return 1, nil
	})
	qt.Assert(t, qt.Equals(err, ErrCancelled))
}

func TestCheckCancelledReturnsNilWhenNotCancelled(t *testing.T) {
	d := New(nil)
	_, err := GetOrCompute(d, queryKey("x"), func(ctx *Ctx) (int, error) {
		return 1, ctx.CheckCancelled()
	})
	qt.Assert(t, qt.IsNil(err))
}

func TestSnapshotStaleAfterSetInput(t *testing.T) {
	d := New(nil)
	snap := d.Snapshot()
	qt.Assert(t, qt.IsFalse(snap.Stale()))

	d.SetInput(fileKey("a.py"), "x")
	qt.Assert(t, qt.IsTrue(snap.Stale()))

	_, err := GetOrComputeSnapshot(snap, queryKey("x"), func(ctx *Ctx) (int, error) {
		return 1, nil
	})
	qt.Assert(t, qt.Equals(err, ErrCancelled))
}

func TestInternAssignsStableDenseIDs(t *testing.T) {
	in := NewIntern[string]()
	a := in.GetOrInsert("foo")
	b := in.GetOrInsert("bar")
	a2 := in.GetOrInsert("foo")

	qt.Assert(t, qt.Equals(a, a2))
	qt.Assert(t, qt.Not(qt.Equals(a, b)))
	qt.Assert(t, qt.Equals(in.Value(a), "foo"))
	qt.Assert(t, qt.Equals(in.Len(), 2))
}
