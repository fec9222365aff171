package semantic

import (
	"github.com/tylang/tycore/internal/core/db"
	"github.com/tylang/tycore/internal/core/pymodule"
	"github.com/tylang/tycore/internal/core/vfs"
)

// Cache produces and memoizes a Semantic Index per (FileID, revision),
// re-deriving it from the Parsed Module Cache's AST whenever that AST
// changes (spec.md §4.5 "derived fresh each time its containing file's
// AST changes, and memoized like any other query").
type Cache struct {
	db      *db.Database
	modules *pymodule.Cache
}

// New creates a Cache that derives indices from modules.
func New(database *db.Database, modules *pymodule.Cache) *Cache {
	return &Cache{db: database, modules: modules}
}

type queryKey struct{ id vfs.FileID }

// Index returns the Semantic Index for id, computing and caching it
// against the Parsed Module Cache's current AST for id.
func (c *Cache) Index(id vfs.FileID) (*Index, error) {
	return db.GetOrCompute(c.db, queryKey{id}, func(ctx *db.Ctx) (*Index, error) {
		if err := ctx.CheckCancelled(); err != nil {
			return nil, err
		}
		// Parsed is itself a memoized query; recording the same file
		// input key here (rather than relying on Parsed's own internal
		// bookkeeping) ties this query's invalidation directly to file
		// edits, the same pattern vfs.NewTokenFileCtx uses.
		ctx.ReadInput(vfs.FileInputKey(id))
		mod, err := c.modules.Parsed(id)
		if err != nil {
			return nil, err
		}
		return Build(mod.File), nil
	})
}
