// Package diag implements the Diagnostic Model (spec.md §4.9):
// Diagnostic, Annotation, Span, Severity, Fix, and Edit, plus the
// (file, range) sort order downstream consumers rely on for
// deterministic output. It is grounded on the teacher's cue/errors.Error
// interface and cue/token.Pos/Position pair, generalized from CUE's
// single-message errors to a richer multi-annotation diagnostic.
package diag

import (
	"fmt"
	"sort"

	"github.com/tylang/tycore/internal/core/vfs"
)

// Severity is totally ordered for filtering (spec.md §4.9).
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Span is (file, optional byte range); a nil Range refers to the whole
// file (spec.md §4.9 "Span").
type Span struct {
	File  vfs.FileID
	Range *Range // nil = whole file
}

// Range is a half-open byte range [Start, End).
type Range struct {
	Start, End int
	// StartLine/StartCol are 1-based, for PATH:LINE:COL rendering
	// (spec.md §6 "Diagnostic output").
	StartLine, StartCol int
}

// Contains reports whether r wholly contains o (used by the suppression
// engine's covered-range containment test).
func (r Range) Contains(o Range) bool { return r.Start <= o.Start && o.End <= r.End }

// Annotation is a labeled span within a Diagnostic (spec.md §4.9).
type Annotation struct {
	Span    Span
	Message string
}

// EditSafety classifies whether applying a Fix's edits automatically is
// safe (spec.md §4.7 "explicit safety classification").
type EditSafety int

const (
	Unsafe EditSafety = iota
	Safe
)

// Edit is one byte-range replacement within a single file.
type Edit struct {
	File        vfs.FileID
	Range       Range
	Replacement string
}

// Fix is a named, described set of edits with a safety classification
// (spec.md §4.7 "Edits are descriptions, not applications").
type Fix struct {
	Title  string
	Safety EditSafety
	Edits  []Edit
}

// Tag is a free-form classification attached to a Diagnostic
// (spec.md §4.9, e.g. "Unnecessary", "Deprecated").
type Tag string

const (
	TagUnnecessary Tag = "unnecessary"
	TagDeprecated  Tag = "deprecated"
)

// Diagnostic is the unit of reported information (spec.md §4.9).
type Diagnostic struct {
	ID       string // lint code, or a syntax-error marker
	Severity Severity
	Primary  Annotation
	Secondary []Annotation
	Sub      []Diagnostic
	Fix       *Fix
	Tags      []Tag
}

// HasTag reports whether d carries tag.
func (d Diagnostic) HasTag(tag Tag) bool {
	for _, t := range d.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Sort orders diagnostics deterministically by (file, range start, range
// end, id), the order spec.md §5 requires callers to impose for
// deterministic output across a parallel scheduler run.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i].Primary.Span, diags[j].Primary.Span
		if a.File != b.File {
			return a.File < b.File
		}
		ar, br := rangeOrZero(a.Range), rangeOrZero(b.Range)
		if ar.Start != br.Start {
			return ar.Start < br.Start
		}
		if ar.End != br.End {
			return ar.End < br.End
		}
		return diags[i].ID < diags[j].ID
	})
}

func rangeOrZero(r *Range) Range {
	if r == nil {
		return Range{}
	}
	return *r
}

// Format renders d in the stable PATH:LINE:COL: MESSAGE line format
// (spec.md §6 "Diagnostic output"), using pathOf to look up the primary
// span's file path.
func Format(d Diagnostic, pathOf func(vfs.FileID) string) string {
	path := pathOf(d.Primary.Span.File)
	if d.Primary.Span.Range == nil {
		return fmt.Sprintf("%s: %s", path, d.Primary.Message)
	}
	r := d.Primary.Span.Range
	return fmt.Sprintf("%s:%d:%d: %s", path, r.StartLine, r.StartCol, d.Primary.Message)
}
