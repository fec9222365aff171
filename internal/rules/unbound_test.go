package rules

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/tylang/tycore/internal/core/diag"
	"github.com/tylang/tycore/internal/core/pymodule"
	"github.com/tylang/tycore/internal/core/resolve"
	"github.com/tylang/tycore/internal/core/semantic"
	"github.com/tylang/tycore/internal/core/session"
	"github.com/tylang/tycore/internal/core/vfs"
	"github.com/tylang/tycore/ty/ast"
	"github.com/tylang/tycore/ty/parser"
	"github.com/tylang/tycore/ty/token"
)

func checkContext(t *testing.T, src string) (*session.CheckContext, *ast.Module) {
	t.Helper()
	content := []byte(src)
	tokFile := token.NewFile("m.py", content, 1)
	res := parser.ParseFile(tokFile, content, parser.Config{})
	qt.Assert(t, qt.IsNil(res.Errors))

	mod := &pymodule.Module{File: res.File, TokFile: tokFile}
	idx := semantic.Build(res.File)
	ctx := session.New(vfs.FileID(0), "m.py", mod, idx, nil, resolve.Version{Major: 3, Minor: 12}, nil)
	return ctx, res.File
}

func TestUnboundNameReportsError(t *testing.T) {
	ctx, mod := checkContext(t, "print(x)\n")
	UnboundName{}.Check(ctx, mod)
	diags := ctx.Diagnostics()
	qt.Assert(t, qt.HasLen(diags, 1))
	qt.Assert(t, qt.Equals(diags[0].ID, "unbound-name"))
	qt.Assert(t, qt.Equals(diags[0].Severity, diag.Error))
}

func TestUnboundNamePossiblyUnboundWarns(t *testing.T) {
	ctx, mod := checkContext(t, "if cond:\n    x = 1\nprint(x)\n")
	UnboundName{}.Check(ctx, mod)
	diags := ctx.Diagnostics()
	qt.Assert(t, qt.HasLen(diags, 2))

	var ids []string
	for _, d := range diags {
		ids = append(ids, d.ID)
	}
	qt.Assert(t, qt.Contains(ids, "unbound-name"))    // `cond` itself is unbound
	qt.Assert(t, qt.Contains(ids, "possibly-unbound-name"))
}

func TestUnboundNameCleanModuleReportsNothing(t *testing.T) {
	ctx, mod := checkContext(t, "x = 1\nprint(x)\n")
	UnboundName{}.Check(ctx, mod)
	qt.Assert(t, qt.HasLen(ctx.Diagnostics(), 0))
}
