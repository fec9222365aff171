package pymodule

import (
	"fmt"
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/tylang/tycore/internal/core/db"
	"github.com/tylang/tycore/internal/core/vfs"
)

func TestParsedMemoizesUntilOverlayChanges(t *testing.T) {
	dbase := db.New(nil)
	store := vfs.New(dbase)
	cache := New(dbase, store)

	id := store.FileForPath("m.py", vfs.KindFirstParty)
	store.SetOverlay(id, []byte("x = 1\n"))

	mod1, err := cache.Parsed(id)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(mod1.Errors))
	qt.Assert(t, qt.HasLen(mod1.File.Body, 1))

	mod2, err := cache.Parsed(id)
	qt.Assert(t, qt.IsNil(err))
	// Same cached *Module, not merely an equal one: the query was not
	// recomputed.
	qt.Assert(t, qt.Equals(mod1, mod2))

	store.SetOverlay(id, []byte("x = 1\ny = 2\n"))
	mod3, err := cache.Parsed(id)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.HasLen(mod3.File.Body, 2))
}

func TestParsedSurfacesSyntaxErrorsWithoutFailingQuery(t *testing.T) {
	dbase := db.New(nil)
	store := vfs.New(dbase)
	cache := New(dbase, store)

	id := store.FileForPath("bad.py", vfs.KindFirstParty)
	store.SetOverlay(id, []byte("x = )\n"))

	mod, err := cache.Parsed(id)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNotNil(mod.Errors))
	qt.Assert(t, qt.IsNotNil(mod.File))
}

func TestParsedReadErrorProducesEmptyModuleWithError(t *testing.T) {
	dbase := db.New(nil)
	store := vfs.New(dbase)
	store.SetReadFile(func(path string) ([]byte, error) {
		return nil, fmt.Errorf("disk gone: %s", path)
	})
	cache := New(dbase, store)

	id := store.FileForPath("missing.py", vfs.KindFirstParty)
	mod, err := cache.Parsed(id)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNotNil(mod.Errors))
	qt.Assert(t, qt.HasLen(mod.File.Body, 0))
}
