// Package astid assigns stable per-file ids to definition-bearing AST
// nodes and supports resolving back from an id to a live node
// (spec.md §4.4). It is grounded on the teacher's cue/ast.Walk /
// internal/astinternal debug-walker traversal, adapted with the
// "deferred body traversal" worklist the DESIGN NOTES call for: entering
// a function or class body is deferred until all of its outer siblings
// have received ids, so an edit inside a body never renumbers later
// module-level definitions.
package astid

import (
	"fmt"

	"github.com/tylang/tycore/ty/ast"
)

// Kind enumerates the node kinds that receive an id, matching spec.md's
// list: module root, function/class defs, assignment forms, imports,
// parameters, and type aliases. Type parameters are plain names on their
// ClassDef or TypeAlias and receive no id.
type Kind int

const (
	KindModule Kind = iota
	KindFunctionDef
	KindClassDef
	KindParam
	KindAssign
	KindAugAssign
	KindAnnAssign
	KindTypeAlias
	KindImport
	KindImportFrom
)

// key pairs a node's syntactic identity (kind + source range) so a
// reparse that reproduces byte-identical ranges reproduces the same id,
// the way the teacher's AstId scheme is stable across edits that don't
// renumber nodes.
type key struct {
	kind   Kind
	offset int
	end    int
}

// ID is a dense, per-file id for a node of the given id-bearing kind K.
// The phantom type parameter gives the same compile-time type safety as
// spec.md's FileAstId<N>, expressed with a Go generic instead of a
// template.
type ID[K any] int

// Table holds the append-only id vector for one file's AST, plus the
// key->id and id->key maps needed to round-trip (spec.md §3 "AstId").
type Table struct {
	keys []key          // id -> key, dense, append-only
	ids  map[key]int    // key -> id
	node map[int]ast.Node
}

// Build walks mod and assigns ids to every id-bearing node, deferring
// descent into function and class bodies via an explicit worklist
// (spec.md §4.4 "Traversal rule"; DESIGN NOTES "deferred body traversal
// for ast-id assignment... implement as an explicit worklist of deferred
// definitions rather than via recursive descent").
func Build(mod *ast.Module) *Table {
	t := &Table{ids: make(map[key]int), node: make(map[int]ast.Node)}

	t.assign(KindModule, mod)

	type deferredBody struct {
		stmts []ast.Stmt
	}
	worklist := []deferredBody{{stmts: mod.Body}}

	for len(worklist) > 0 {
		cur := worklist[0]
		worklist = worklist[1:]

		var nested []deferredBody
		for _, s := range cur.stmts {
			switch n := s.(type) {
			case *ast.FunctionDef:
				t.assign(KindFunctionDef, n)
				for _, param := range n.Params {
					t.assign(KindParam, param)
				}
				nested = append(nested, deferredBody{stmts: n.Body})
			case *ast.ClassDef:
				t.assign(KindClassDef, n)
				nested = append(nested, deferredBody{stmts: n.Body})
			case *ast.Assign:
				t.assign(KindAssign, n)
			case *ast.AugAssign:
				t.assign(KindAugAssign, n)
			case *ast.AnnAssign:
				t.assign(KindAnnAssign, n)
			case *ast.TypeAlias:
				t.assign(KindTypeAlias, n)
			case *ast.Import:
				t.assign(KindImport, n)
			case *ast.ImportFrom:
				t.assign(KindImportFrom, n)
			case *ast.If:
				nested = append(nested, deferredBody{stmts: n.Body}, deferredBody{stmts: n.Orelse})
			case *ast.While:
				nested = append(nested, deferredBody{stmts: n.Body}, deferredBody{stmts: n.Orelse})
			case *ast.For:
				nested = append(nested, deferredBody{stmts: n.Body}, deferredBody{stmts: n.Orelse})
			case *ast.Try:
				nested = append(nested, deferredBody{stmts: n.Body}, deferredBody{stmts: n.Orelse}, deferredBody{stmts: n.Final})
				for _, h := range n.Handler {
					nested = append(nested, deferredBody{stmts: h.Body})
				}
			case *ast.Match:
				for _, c := range n.Cases {
					nested = append(nested, deferredBody{stmts: c.Body})
				}
			}
		}
		// Siblings at this level are fully assigned before any nested
		// body is processed: append defers descent to a later worklist
		// round rather than recursing immediately.
		worklist = append(worklist, nested...)
	}

	return t
}

func (t *Table) assign(k Kind, n ast.Node) int {
	key := key{kind: k, offset: n.Pos().Offset(), end: n.End().Offset()}
	if id, ok := t.ids[key]; ok {
		return id
	}
	id := len(t.keys)
	t.keys = append(t.keys, key)
	t.ids[key] = id
	t.node[id] = n
	return id
}

// IDOf returns the stable id for a node previously assigned by Build. It
// panics if n is not of an id-bearing kind or was never assigned, mirroring
// spec.md's "ast_id_of... panics if the node is not of an id-bearing kind" —
// a programmer-error condition, not a recoverable one (spec.md §7).
func IDOf[K ast.Node](t *Table, kind Kind, n ast.Node) ID[K] {
	key := key{kind: kind, offset: n.Pos().Offset(), end: n.End().Offset()}
	id, ok := t.ids[key]
	if !ok {
		panic(fmt.Sprintf("astid: node at [%d,%d) of kind %v was never assigned an id", key.offset, key.end, kind))
	}
	return ID[K](id)
}

// Resolve returns the live node for id. Because ids are stable across
// edits that don't renumber nodes, and Build is re-run per revision, a
// caller normally calls Resolve against a Table built for the same
// revision that produced the id (spec.md §3 "resolve(file, id) -> node").
func (t *Table) Resolve(id int) (ast.Node, bool) {
	n, ok := t.node[id]
	return n, ok
}

// Len reports how many ids have been assigned.
func (t *Table) Len() int { return len(t.keys) }
