package parser

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/tylang/tycore/ty/ast"
	"github.com/tylang/tycore/ty/token"
)

func parse(t *testing.T, src string, cfg Config) *Result {
	t.Helper()
	content := []byte(src)
	file := token.NewFile("t.py", content, 1)
	return ParseFile(file, content, cfg)
}

func TestParseFunctionDefWithParamsAndReturn(t *testing.T) {
	res := parse(t, "def f(x, y=1):\n    return x + y\n", Config{})
	qt.Assert(t, qt.IsNil(res.Errors))
	qt.Assert(t, qt.HasLen(res.File.Body, 1))

	fn, ok := res.File.Body[0].(*ast.FunctionDef)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(fn.Name, "f"))
	qt.Assert(t, qt.HasLen(fn.Params, 2))
	qt.Assert(t, qt.Equals(fn.Params[0].Name, "x"))
	qt.Assert(t, qt.Equals(fn.Params[1].Name, "y"))
	qt.Assert(t, qt.IsNotNil(fn.Params[1].Default))

	qt.Assert(t, qt.HasLen(fn.Body, 1))
	ret, ok := fn.Body[0].(*ast.Return)
	qt.Assert(t, qt.IsTrue(ok))
	bin, ok := ret.Value.(*ast.BinOp)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(bin.Op, "+"))
}

func TestParseClassWithDecoratedMethods(t *testing.T) {
	src := "class C(Base):\n" +
		"    @staticmethod\n" +
		"    def f():\n" +
		"        pass\n"
	res := parse(t, src, Config{})
	qt.Assert(t, qt.IsNil(res.Errors))

	cd, ok := res.File.Body[0].(*ast.ClassDef)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(cd.Name, "C"))
	qt.Assert(t, qt.HasLen(cd.Bases, 1))

	fn, ok := cd.Body[0].(*ast.FunctionDef)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(fn.Kind, ast.FunctionStaticMethod))
}

func TestParseImportForms(t *testing.T) {
	src := "import a.b.c as abc\n" +
		"from . import sibling\n" +
		"from ..pkg import x, y as z\n"
	res := parse(t, src, Config{})
	qt.Assert(t, qt.IsNil(res.Errors))
	qt.Assert(t, qt.HasLen(res.File.Body, 3))

	imp, ok := res.File.Body[0].(*ast.Import)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(imp.Modules[0].DottedName, "a.b.c"))
	qt.Assert(t, qt.Equals(imp.Modules[0].Alias, "abc"))

	from1, ok := res.File.Body[1].(*ast.ImportFrom)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(from1.Level, 1))
	qt.Assert(t, qt.Equals(from1.Names[0].Name, "sibling"))

	from2, ok := res.File.Body[2].(*ast.ImportFrom)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(from2.Level, 2))
	qt.Assert(t, qt.Equals(from2.Module, "pkg"))
	qt.Assert(t, qt.HasLen(from2.Names, 2))
	qt.Assert(t, qt.Equals(from2.Names[1].Alias, "z"))
}

func TestParseIsInstanceRecognizedAsPredicate(t *testing.T) {
	res := parse(t, "if isinstance(x, (int, str)):\n    pass\n", Config{})
	qt.Assert(t, qt.IsNil(res.Errors))

	ifStmt, ok := res.File.Body[0].(*ast.If)
	qt.Assert(t, qt.IsTrue(ok))
	is, ok := ifStmt.Test.(*ast.IsInstance)
	qt.Assert(t, qt.IsTrue(ok))
	name, ok := is.Target.(*ast.Name)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(name.Id, "x"))
	qt.Assert(t, qt.HasLen(is.Types, 2))
}

func TestParseWalrusAndComprehension(t *testing.T) {
	res := parse(t, "y = [n for n in range(10) if (m := n) > 0]\n", Config{})
	qt.Assert(t, qt.IsNil(res.Errors))

	assign, ok := res.File.Body[0].(*ast.Assign)
	qt.Assert(t, qt.IsTrue(ok))
	comp, ok := assign.Value.(*ast.Comprehension)
	qt.Assert(t, qt.IsTrue(ok))
	elt, ok := comp.Element.(*ast.Name)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(elt.Id, "n"))
	qt.Assert(t, qt.Equals(comp.Kind, ast.ComprehensionList))
	qt.Assert(t, qt.HasLen(comp.Ifs, 1))
	cmp, ok := comp.Ifs[0].(*ast.Compare)
	qt.Assert(t, qt.IsTrue(ok))
	_, ok = cmp.Left.(*ast.NamedExpr)
	qt.Assert(t, qt.IsTrue(ok))
}

func TestParseErrorsAreCollectedNotFatal(t *testing.T) {
	res := parse(t, "x = )\ny = 2\n", Config{})
	qt.Assert(t, qt.IsNotNil(res.Errors))
	// The module is still usable and the following line still parses,
	// even though the first assignment's right-hand side was malformed.
	qt.Assert(t, qt.IsNotNil(res.File))
	qt.Assert(t, qt.HasLen(res.File.Body, 2))
	second, ok := res.File.Body[1].(*ast.Assign)
	qt.Assert(t, qt.IsTrue(ok))
	c, ok := second.Value.(*ast.Constant)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(c.Value, "2"))
}

func TestParseCommentsExtractedWithOwnLineFlag(t *testing.T) {
	src := "x = 1  # ty: ignore[foo]\n# noqa: E501\ny = 2\n"
	res := parse(t, src, Config{Mode: ParseComments})
	qt.Assert(t, qt.HasLen(res.Comments, 2))
	qt.Assert(t, qt.IsFalse(res.Comments[0].OwnLine))
	qt.Assert(t, qt.IsTrue(res.Comments[1].OwnLine))
}

func TestParseImportsOnlyModeStopsAtFirstNonImport(t *testing.T) {
	src := "import os\nfrom sys import argv\nx = 1\ndef f(): pass\n"
	res := parse(t, src, Config{Mode: ImportsOnly})
	qt.Assert(t, qt.HasLen(res.File.Body, 2))
}

func TestParseAugAssignAndAnnAssign(t *testing.T) {
	res := parse(t, "x: int = 1\nx += 2\n", Config{})
	qt.Assert(t, qt.IsNil(res.Errors))
	qt.Assert(t, qt.HasLen(res.File.Body, 2))

	ann, ok := res.File.Body[0].(*ast.AnnAssign)
	qt.Assert(t, qt.IsTrue(ok))
	name, ok := ann.Annotation.(*ast.Name)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(name.Id, "int"))

	aug, ok := res.File.Body[1].(*ast.AugAssign)
	qt.Assert(t, qt.IsTrue(ok))
	qt.Assert(t, qt.Equals(aug.Op, "+="))
}
