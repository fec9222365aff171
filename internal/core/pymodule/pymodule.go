// Package pymodule implements the Parsed Module Cache (spec.md §4.3):
// parsing source text once per (file, revision) and sharing the
// resulting immutable AST by reference, grounded on the teacher's
// internal/lsp/fscache.cueFileParser (parse-memoize-by-content pattern).
package pymodule

import (
	"fmt"

	"github.com/tylang/tycore/internal/core/db"
	"github.com/tylang/tycore/internal/core/vfs"
	"github.com/tylang/tycore/ty/ast"
	"github.com/tylang/tycore/ty/parser"
	"github.com/tylang/tycore/ty/token"
)

// Module is the immutable result of parsing one file: AST, token file
// (for comment-range queries without re-lexing), and diagnostics. It is
// shared by reference; consumers must not mutate the AST in place
// (spec.md §3 "ParsedModule").
type Module struct {
	File     *ast.Module
	TokFile  *token.File
	Comments []parser.Comment
	Errors   error
}

// Cache produces and memoizes a Module per (FileID, revision), backed by
// the revisioned Database so edits automatically invalidate stale ASTs.
type Cache struct {
	db    *db.Database
	store *vfs.Store
}

// New creates a Cache over store, memoizing through database.
func New(database *db.Database, store *vfs.Store) *Cache {
	return &Cache{db: database, store: store}
}

type queryKey struct {
	kind string
	id   vfs.FileID
}

// Parsed always succeeds: syntax errors surface as entries in the
// returned Module's Errors field rather than as a Go error, matching
// spec.md's "Parse diagnostic... never raised; always inspected."
func (c *Cache) Parsed(id vfs.FileID) (*Module, error) {
	return db.GetOrCompute(c.db, queryKey{"parsed", id}, func(ctx *db.Ctx) (*Module, error) {
		if err := ctx.CheckCancelled(); err != nil {
			return nil, err
		}
		tokFile, err := c.store.NewTokenFileCtx(ctx, id)
		if err != nil {
			// I/O error: record against the file, present an empty
			// module rather than failing the query (spec.md §7).
			empty := &ast.Module{}
			return &Module{File: empty, Errors: fmt.Errorf("pymodule: reading %s: %w", c.store.Path(id), err)}, nil
		}
		content := tokFile.Content()
		res := parser.ParseFile(tokFile, content, parser.Config{Mode: parser.ParseComments})
		return &Module{
			File:     res.File,
			TokFile:  tokFile,
			Comments: res.Comments,
			Errors:   res.Errors,
		}, nil
	})
}
