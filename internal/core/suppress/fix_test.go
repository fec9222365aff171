package suppress

import (
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/tylang/tycore/internal/core/diag"
	"github.com/tylang/tycore/ty/token"
)

func targetAt(line int, code string) Target {
	return Target{
		Diagnostic: diag.Diagnostic{
			ID:      code,
			Primary: diag.Annotation{Span: diag.Span{Range: &diag.Range{StartLine: line}}},
		},
		Code: code,
	}
}

func TestAddSuppressionsInsertsNewCommentAtLineEnd(t *testing.T) {
	content := []byte("x = undefined\n")
	tokFile := token.NewFile("m.py", content, 1)

	fix := AddSuppressions(tokFile, content, 0, nil, []Target{targetAt(1, "unbound-name")})
	qt.Assert(t, qt.HasLen(fix.Edits, 1))
	e := fix.Edits[0]
	qt.Assert(t, qt.Equals(e.Replacement, " # ty:ignore[unbound-name]"))
	qt.Assert(t, qt.Equals(e.Range.Start, len("x = undefined")))
	qt.Assert(t, qt.Equals(e.Range.End, len("x = undefined")))
}

func TestAddSuppressionsBatchesSameLineTargets(t *testing.T) {
	content := []byte("x = undefined\n")
	tokFile := token.NewFile("m.py", content, 1)

	fix := AddSuppressions(tokFile, content, 0, nil, []Target{
		targetAt(1, "unbound-name"),
		targetAt(1, "possibly-unbound-name"),
	})
	qt.Assert(t, qt.HasLen(fix.Edits, 1))
	// Codes are sorted and deduplicated within one comment.
	qt.Assert(t, qt.Equals(fix.Edits[0].Replacement, " # ty:ignore[possibly-unbound-name, unbound-name]"))
}

func TestAddSuppressionsExtendsExistingTyIgnoreComment(t *testing.T) {
	src := "x = undefined  # ty:ignore[unbound-name]\n"
	content := []byte(src)
	tokFile := token.NewFile("m.py", content, 1)

	tbl, _, _ := buildTable(t, 0, src)
	fix := AddSuppressions(tokFile, content, 0, tbl, []Target{targetAt(1, "possibly-unbound-name")})
	qt.Assert(t, qt.HasLen(fix.Edits, 1))
	qt.Assert(t, qt.Equals(fix.Edits[0].Replacement, ", possibly-unbound-name"))
}

func TestAddSuppressionsSkipsAlreadyCoveredCode(t *testing.T) {
	src := "x = undefined  # ty:ignore[unbound-name]\n"
	content := []byte(src)
	tokFile := token.NewFile("m.py", content, 1)

	tbl, _, _ := buildTable(t, 0, src)
	fix := AddSuppressions(tokFile, content, 0, tbl, []Target{targetAt(1, "unbound-name")})
	qt.Assert(t, qt.HasLen(fix.Edits, 1))
	qt.Assert(t, qt.Equals(fix.Edits[0].Replacement, ""))
}

func TestAddSuppressionsNoTargetsWithRangeProducesNoEdits(t *testing.T) {
	content := []byte("x = 1\n")
	tokFile := token.NewFile("m.py", content, 1)

	d := Target{Diagnostic: diag.Diagnostic{ID: "x"}, Code: "x"} // no Range
	fix := AddSuppressions(tokFile, content, 0, nil, []Target{d})
	qt.Assert(t, qt.HasLen(fix.Edits, 0))
}
