package session

import (
	"errors"
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/tylang/tycore/internal/core/diag"
	"github.com/tylang/tycore/internal/core/pymodule"
	"github.com/tylang/tycore/internal/core/resolve"
	"github.com/tylang/tycore/internal/core/semantic"
	"github.com/tylang/tycore/internal/core/suppress"
	"github.com/tylang/tycore/internal/core/vfs"
	"github.com/tylang/tycore/ty/ast"
	"github.com/tylang/tycore/ty/parser"
	"github.com/tylang/tycore/ty/token"
)

func newContext(t *testing.T, src string, suppressions *suppress.Table, imports Imports) *CheckContext {
	t.Helper()
	content := []byte(src)
	tokFile := token.NewFile("m.py", content, 1)
	res := parser.ParseFile(tokFile, content, parser.Config{})
	qt.Assert(t, qt.IsNil(res.Errors))
	mod := &pymodule.Module{File: res.File, TokFile: tokFile}
	idx := semantic.Build(res.File)
	return New(vfs.FileID(7), "m.py", mod, idx, suppressions, resolve.Version{Major: 3, Minor: 12}, imports)
}

func TestReportStampsContextFile(t *testing.T) {
	ctx := newContext(t, "x = 1\n", nil, nil)
	ctx.Report(diag.Diagnostic{ID: "r", Primary: diag.Annotation{}})
	diags := ctx.Diagnostics()
	qt.Assert(t, qt.HasLen(diags, 1))
	qt.Assert(t, qt.Equals(diags[0].Primary.Span.File, vfs.FileID(7)))
}

func TestReportFiltersSuppressedDiagnostics(t *testing.T) {
	src := "x = undefined  # noqa: unbound-name\n"
	content := []byte(src)
	tokFile := token.NewFile("m.py", content, 1)
	res := parser.ParseFile(tokFile, content, parser.Config{Mode: parser.ParseComments})
	tbl := suppress.Build(0, tokFile, content, res.Comments)

	ctx := newContext(t, src, tbl, nil)
	r := &diag.Range{Start: 4, End: 13, StartLine: 1, StartCol: 5}
	ctx.Report(diag.Diagnostic{ID: "unbound-name", Primary: diag.Annotation{Span: diag.Span{Range: r}}})
	qt.Assert(t, qt.HasLen(ctx.Diagnostics(), 0))
}

func TestImportedIndexWithoutResolverReportsNotOK(t *testing.T) {
	ctx := newContext(t, "x = 1\n", nil, nil)
	_, _, ok := ctx.ImportedIndex(vfs.FileID(1))
	qt.Assert(t, qt.IsFalse(ok))
}

type fakeImports struct {
	idx *semantic.Index
	err error
}

func (f *fakeImports) Index(vfs.FileID) (*semantic.Index, error) { return f.idx, f.err }

func TestImportedIndexDelegatesToResolver(t *testing.T) {
	want := semantic.Build(&ast.Module{})
	ctx := newContext(t, "x = 1\n", nil, &fakeImports{idx: want})
	idx, err, ok := ctx.ImportedIndex(vfs.FileID(3))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(idx, want))
}

func TestImportedIndexPropagatesResolverError(t *testing.T) {
	boom := errors.New("boom")
	ctx := newContext(t, "x = 1\n", nil, &fakeImports{err: boom})
	_, err, ok := ctx.ImportedIndex(vfs.FileID(3))
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(err, boom))
}

type countingRule struct {
	id    string
	calls *[]string
}

func (r countingRule) ID() string { return r.id }
func (r countingRule) Check(ctx *CheckContext, mod *ast.Module) {
	*r.calls = append(*r.calls, r.id)
	ctx.Report(diag.Diagnostic{ID: r.id})
}

func TestRunExecutesRulesInOrderAndCollectsDiagnostics(t *testing.T) {
	ctx := newContext(t, "x = 1\n", nil, nil)
	var calls []string
	rules := []Rule{
		countingRule{id: "first", calls: &calls},
		countingRule{id: "second", calls: &calls},
	}
	diags := Run(ctx, rules)
	qt.Assert(t, qt.DeepEquals(calls, []string{"first", "second"}))
	qt.Assert(t, qt.HasLen(diags, 2))
}
