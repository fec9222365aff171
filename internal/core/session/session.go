// Package session implements the Rule Adapter Interface (spec.md
// §4.10): the read-only per-file CheckContext that rule implementations
// see, and the sink they report diagnostics through. It is grounded on
// the teacher's internal/lsp/cache.File (a per-file handle bundling
// syntax, errors, and derived state for one user) and Workspace's
// publishDiagnostics sweep, adapted from an editor-facing, mutable,
// multi-user file handle into an immutable, single-task view handed to
// one rule run.
package session

import (
	"github.com/tylang/tycore/internal/core/diag"
	"github.com/tylang/tycore/internal/core/pymodule"
	"github.com/tylang/tycore/internal/core/resolve"
	"github.com/tylang/tycore/internal/core/semantic"
	"github.com/tylang/tycore/internal/core/suppress"
	"github.com/tylang/tycore/internal/core/vfs"
	"github.com/tylang/tycore/ty/ast"
)

// Imports exposes, for one file, the semantic indices of the files its
// own index named as dependencies (spec.md §4.10 "Rules may query the
// database for other files' semantic indices"), already resolved to
// FileIDs by the caller.
type Imports interface {
	Index(vfs.FileID) (*semantic.Index, error)
}

// CheckContext is the read-only view one rule run sees of one file: its
// AST, its semantic index, the suppression table governing which
// diagnostics actually surface, the configured target Python version,
// and a report sink (spec.md §4.10). Rules must treat it as immutable;
// nothing on CheckContext is safe to write to concurrently from rule
// code, matching the "must not mutate any state" constraint.
type CheckContext struct {
	file    vfs.FileID
	path    string
	module  *pymodule.Module
	index   *semantic.Index
	target  resolve.Version
	imports Imports

	suppressions *suppress.Table
	reports      []diag.Diagnostic
}

// New builds a CheckContext for file. suppressions may be nil (no
// suppression table available, e.g. a virtual document); every report
// is then accepted unfiltered.
func New(file vfs.FileID, path string, module *pymodule.Module, index *semantic.Index, suppressions *suppress.Table, target resolve.Version, imports Imports) *CheckContext {
	return &CheckContext{
		file:         file,
		path:         path,
		module:       module,
		index:        index,
		target:       target,
		imports:      imports,
		suppressions: suppressions,
	}
}

// File returns the FileID under check.
func (c *CheckContext) File() vfs.FileID { return c.file }

// Path returns the file's display path.
func (c *CheckContext) Path() string { return c.path }

// AST returns the file's parsed module. Never nil: a file that failed
// to read or parse still gets an empty module with Errors set
// (pymodule.Cache.Parsed's contract).
func (c *CheckContext) AST() *ast.Module { return c.module.File }

// ParseErrors returns any syntax/read errors recorded for this file.
func (c *CheckContext) ParseErrors() error { return c.module.Errors }

// Index returns the file's semantic index.
func (c *CheckContext) Index() *semantic.Index { return c.index }

// TargetVersion returns the configured Python version rules should
// check compatibility against.
func (c *CheckContext) TargetVersion() resolve.Version { return c.target }

// ImportedIndex looks up the semantic index of another file, for rules
// that need to resolve a name into an imported module's symbol table
// (spec.md §4.10). Returns ok=false if this context has no Imports
// resolver wired (e.g. a standalone single-file check).
func (c *CheckContext) ImportedIndex(id vfs.FileID) (idx *semantic.Index, err error, ok bool) {
	if c.imports == nil {
		return nil, nil, false
	}
	idx, err = c.imports.Index(id)
	return idx, err, true
}

// Report files d, first routing it through the suppression table: a
// suppressed diagnostic is recorded as used but never surfaced
// (spec.md §4.7 "Querying"). d.Primary.Span.File is always stamped with
// this context's file — a rule only ever reports against the file it
// was invoked for — so callers need not (and cannot) set it themselves.
func (c *CheckContext) Report(d diag.Diagnostic) {
	d.Primary.Span.File = c.file
	if c.suppressions != nil && c.suppressions.IsSuppressed(d) {
		return
	}
	c.reports = append(c.reports, d)
}

// Diagnostics returns every diagnostic reported so far that survived
// suppression.
func (c *CheckContext) Diagnostics() []diag.Diagnostic { return c.reports }

// Rule is a pure function (context, node) -> () (spec.md §4.10 "A rule
// is a pure function"). Implementations must not retain ctx or node
// past the call, and must not mutate any state reachable through ctx.
type Rule interface {
	// ID names the rule for suppression-code matching and reporting
	// (spec.md §4.9 Diagnostic.ID).
	ID() string
	// Check walks whatever part of ctx.AST()/ctx.Index() this rule
	// cares about, calling ctx.Report for every finding.
	Check(ctx *CheckContext, mod *ast.Module)
}

// Run executes every rule against ctx in order, returning the combined,
// suppression-filtered diagnostics (spec.md §4.8's per-file task body:
// "invoking rule implementations against the semantic index").
func Run(ctx *CheckContext, rules []Rule) []diag.Diagnostic {
	mod := ctx.AST()
	for _, rule := range rules {
		rule.Check(ctx, mod)
	}
	return ctx.Diagnostics()
}
