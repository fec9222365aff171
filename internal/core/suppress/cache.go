package suppress

import (
	"github.com/tylang/tycore/internal/core/db"
	"github.com/tylang/tycore/internal/core/pymodule"
	"github.com/tylang/tycore/internal/core/vfs"
)

// Cache produces and memoizes a file's suppression Table per revision,
// re-derived from the Parsed Module Cache's comment list whenever the
// file's AST changes.
type Cache struct {
	db      *db.Database
	store   *vfs.Store
	modules *pymodule.Cache
}

// New creates a Cache over modules and store, memoizing through database.
func New(database *db.Database, store *vfs.Store, modules *pymodule.Cache) *Cache {
	return &Cache{db: database, store: store, modules: modules}
}

type queryKey struct{ id vfs.FileID }

// Table returns the suppression table for id.
func (c *Cache) Table(id vfs.FileID) (*Table, error) {
	return db.GetOrCompute(c.db, queryKey{id}, func(ctx *db.Ctx) (*Table, error) {
		if err := ctx.CheckCancelled(); err != nil {
			return nil, err
		}
		ctx.ReadInput(vfs.FileInputKey(id))
		mod, err := c.modules.Parsed(id)
		if err != nil {
			return nil, err
		}
		content, err := c.store.Content(id)
		if err != nil {
			content = nil
		}
		return Build(id, mod.TokFile, content, mod.Comments), nil
	})
}
