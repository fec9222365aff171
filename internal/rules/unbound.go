// Package rules holds the small set of built-in checks shipped with the
// engine itself: ones derivable straight from the semantic index's
// query shape (use-def chains, instance-attribute flags) rather than
// from any language-specific type inference, which spec.md's Non-goals
// explicitly exclude. It is grounded on the teacher's internal/core/adt
// closedness/reference checks, which likewise walk a pre-built index
// and turn structural facts into errors rather than re-deriving them.
package rules

import (
	"fmt"
	"strings"

	"github.com/tylang/tycore/internal/core/diag"
	"github.com/tylang/tycore/internal/core/session"
	"github.com/tylang/tycore/ty/ast"
)

// UnboundName flags reads of a name that cannot reach any definition,
// and warns on reads that may be unbound on at least one path
// (spec.md §3 "Use-def chain": "unbound"/"may-be-unbound"). A Python
// builtin name with no definition in the module is not reported.
type UnboundName struct{}

// pythonBuiltins holds the builtin names a module can read without
// defining them.
var pythonBuiltins = func() map[string]bool {
	m := make(map[string]bool)
	for _, n := range strings.Fields(`abs all any ascii bin bool bytearray bytes callable chr classmethod
		compile complex delattr dict dir divmod enumerate eval exec filter float format frozenset
		getattr globals hasattr hash hex id input int isinstance issubclass iter len list locals map
		max min next object oct open ord pow print property range repr reversed round set setattr
		slice sorted staticmethod str sum super tuple type vars zip __name__ __file__ Exception`) {
		m[n] = true
	}
	return m
}()

func (UnboundName) ID() string { return "unbound-name" }

func (UnboundName) Check(ctx *session.CheckContext, mod *ast.Module) {
	idx := ctx.Index()
	if idx == nil {
		return
	}
	ast.Walk(mod, func(n ast.Node) bool {
		name, ok := n.(*ast.Name)
		if !ok {
			return true
		}
		entry, ok := idx.UseDef(name)
		if !ok || (entry.Unbound && pythonBuiltins[name.Id]) {
			return true
		}
		switch {
		case entry.Unbound:
			ctx.Report(diag.Diagnostic{
				ID:       "unbound-name",
				Severity: diag.Error,
				Primary: diag.Annotation{
					Span:    diag.Span{Range: nodeRange(name)},
					Message: fmt.Sprintf("%q is unbound: no definition reaches this use", name.Id),
				},
			})
		case entry.MayBeUnbound:
			ctx.Report(diag.Diagnostic{
				ID:       "possibly-unbound-name",
				Severity: diag.Warning,
				Primary: diag.Annotation{
					Span:    diag.Span{Range: nodeRange(name)},
					Message: fmt.Sprintf("%q may be unbound on some paths", name.Id),
				},
			})
		}
		return true
	}, nil)
}

// nodeRange builds a diag.Range from a node's byte offsets; line/column
// are left zero since the rule only has the node, not a token.File to
// translate offsets with — callers that need PATH:LINE:COL rendering
// should post-process via the token.File instead (spec.md §4.9 "Span").
func nodeRange(n ast.Node) *diag.Range {
	return &diag.Range{Start: n.Pos().Offset(), End: n.End().Offset()}
}
