// Package engine wires the core components (File Store, Parsed Module
// Cache, Semantic Index, Module Resolver, Suppression Engine, Check
// Scheduler, Rule Adapter Interface) into the single object a CLI or
// language server drives (spec.md §6 "The core is library-shaped").
// It corresponds to no single spec.md section on its own; it is
// grounded on the teacher's internal/lsp/cache.Workspace, which plays
// the identical "one object owning every subsystem" role for CUE's
// LSP session, generalized here to not assume an editor client.
package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/tylang/tycore/internal/core/db"
	"github.com/tylang/tycore/internal/core/diag"
	"github.com/tylang/tycore/internal/core/pymodule"
	"github.com/tylang/tycore/internal/core/resolve"
	"github.com/tylang/tycore/internal/core/sched"
	"github.com/tylang/tycore/internal/core/semantic"
	"github.com/tylang/tycore/internal/core/session"
	"github.com/tylang/tycore/internal/core/suppress"
	"github.com/tylang/tycore/internal/core/vfs"
	"github.com/tylang/tycore/ty/ast"
)

// Project owns one revisioned Database and every cache layered on top
// of it. A Project is safe for concurrent read access through its
// Check method; mutation (SetSearchPaths, the Store's overlay setters)
// must not race a running Check (spec.md §5 "Shared resource policy").
type Project struct {
	DB        *db.Database
	Store     *vfs.Store
	Modules   *pymodule.Cache
	Semantic  *semantic.Cache
	Resolver  *resolve.Resolver
	Suppress  *suppress.Cache

	rules []session.Rule
	log   *slog.Logger
}

// New assembles a Project. log may be nil, defaulting to a discarding
// logger the way db.New does.
func New(log *slog.Logger, rules ...session.Rule) *Project {
	database := db.New(log)
	store := vfs.New(database)
	modules := pymodule.New(database, store)
	return &Project{
		DB:       database,
		Store:    store,
		Modules:  modules,
		Semantic: semantic.New(database, modules),
		Resolver: resolve.New(database, store, log),
		Suppress: suppress.New(database, store, modules),
		rules:    rules,
		log:      log,
	}
}

// index implements session.Imports against this Project's own Semantic
// cache, so rule code can look up an imported file's symbol table
// through the same CheckContext it was handed (spec.md §4.10).
type index struct{ p *Project }

func (i index) Index(id vfs.FileID) (*semantic.Index, error) { return i.p.Semantic.Index(id) }

// task builds the sched.Task that drives one file through parse,
// index, resolve, and rule-check, reporting its first-party
// dependents back to the scheduler (spec.md §4.8's per-file body).
func (p *Project) task() sched.Task {
	return func(ctx *db.Ctx, file vfs.FileID) (sched.TaskResult, error) {
		if err := ctx.CheckCancelled(); err != nil {
			return sched.TaskResult{}, err
		}
		ctx.ReadInput(vfs.FileInputKey(file))

		mod, err := p.Modules.Parsed(file)
		if err != nil {
			return sched.TaskResult{}, err
		}
		idx, err := p.Semantic.Index(file)
		if err != nil {
			return sched.TaskResult{}, err
		}

		pkgDir := filepath.Dir(p.Store.Path(file))
		var deps []vfs.FileID
		for _, ref := range importRefs(mod.File) {
			if dep, ok := p.Resolver.Resolve(ctx, pkgDir, ref); ok {
				if p.Store.Kind(dep) != vfs.KindFirstParty {
					if _, err := p.Semantic.Index(dep); err != nil {
						return sched.TaskResult{}, err
					}
				}
				deps = append(deps, dep)
			}
		}

		var diags []diag.Diagnostic
		if p.Store.Kind(file) == vfs.KindFirstParty {
			table, err := p.Suppress.Table(file)
			if err != nil {
				return sched.TaskResult{}, err
			}
			cc := session.New(file, p.Store.Path(file), mod, idx, table, p.Resolver.TargetVersion(ctx), index{p})
			diags = session.Run(cc, p.rules)
			diags = append(diags, table.Unused(p.Store.Path)...)
		}

		return sched.TaskResult{File: file, Diagnostics: diags, Dependents: deps}, nil
	}
}

// importRefs flattens every Import/ImportFrom statement in mod into
// resolve.Ref values (spec.md §3 "Dependency edge"), walking the whole
// file rather than just the module scope since Python import statements
// are legal (if unusual) nested inside any block.
func importRefs(mod *ast.Module) []resolve.Ref {
	var refs []resolve.Ref
	ast.Walk(mod, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.Import:
			for _, m := range s.Modules {
				refs = append(refs, resolve.Ref{Module: m.DottedName, Kind: resolve.Absolute})
			}
		case *ast.ImportFrom:
			kind := resolve.Absolute
			if s.Level > 0 {
				kind = resolve.Relative
			}
			refs = append(refs, resolve.Ref{Module: s.Module, Kind: kind, Level: s.Level})
		}
		return true
	}, nil)
	return refs
}

// Check runs the Check Scheduler over files and their first-party
// dependency closure, in mode, returning suppression-filtered,
// deterministically sorted diagnostics (spec.md §4.8, §5).
func (p *Project) Check(ctx context.Context, files []vfs.FileID, mode sched.Mode) ([]diag.Diagnostic, error) {
	s := sched.New(p.DB, mode, p.Store.Kind)
	return s.Check(ctx, files, p.task())
}

// PathOf adapts p.Store.Path for diag.Format's pathOf parameter.
func (p *Project) PathOf(id vfs.FileID) string { return p.Store.Path(id) }

// SplitSearchPath splits a PATH-list-separated CLI flag value into a
// clean path slice, for building a resolve.SearchPathSettings from flag
// strings; shared between the CLI and any future language server.
func SplitSearchPath(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, string(filepath.ListSeparator)) {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
