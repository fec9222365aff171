// Package suppress implements the Suppression Engine (spec.md §4.7):
// parsing `# noqa` / `# ty: ignore` comments into structural records,
// answering is_suppressed queries, tracking usage to report unused
// ignores, and producing batch Fix edits that insert new suppressions.
// It is grounded on the teacher's cue/scanner comment handling (comments
// are collected alongside tokens, then interpreted by a separate pass —
// cue/parser's ParseComments mode) and cue/errors.list's append-many
// aggregation style, adapted to a file-scoped suppression table instead
// of an error list.
package suppress

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tylang/tycore/internal/core/diag"
	"github.com/tylang/tycore/internal/core/vfs"
	"github.com/tylang/tycore/ty/parser"
	"github.com/tylang/tycore/ty/token"
)

// TargetKind distinguishes what a suppression covers (spec.md §3
// "Suppression").
type TargetKind int

const (
	TargetAll TargetKind = iota
	TargetLint
	TargetEmpty
)

// Suppression is one recognized `noqa`/`ty: ignore` comment (spec.md §3
// "Suppression": (file, comment text range, covered range, target)).
type Suppression struct {
	File    vfs.FileID
	Comment diag.Range // the `# ...` comment's own text range
	Covered diag.Range // the range of code it suppresses

	Kind  TargetKind
	Codes []string // set for TargetLint; each entry paired 1:1 with CodeRanges

	// CodeRanges gives the byte range of each entry in Codes within the
	// comment, used to merge contiguous unused codes into one
	// diagnostic (spec.md §4.7 "Accounting").
	CodeRanges []diag.Range

	used map[string]bool // code -> seen during checking; "" key for blanket
}

// Table is the suppression table owned by one file (spec.md §3
// "owned by the file's suppression table").
type Table struct {
	File          vfs.FileID
	Suppressions  []*Suppression
}

var (
	reNoqa     = regexp.MustCompile(`(?i)^\s*noqa\s*(:\s*([A-Za-z0-9_\-, \t]+))?\s*$`)
	reTyIgnore = regexp.MustCompile(`(?i)^\s*ty\s*:\s*ignore\s*(\[([^\]]*)\])?\s*$`)
)

// Build scans comments (produced by the Parsed Module Cache's parser
// pass) and constructs the suppression table for file, computing each
// suppression's covered range against content (spec.md §4.7 "Created
// when a file's token stream is scanned").
func Build(id vfs.FileID, tokFile *token.File, content []byte, comments []parser.Comment) *Table {
	t := &Table{File: id}
	for _, c := range comments {
		s := parseComment(c)
		if s == nil {
			continue
		}
		s.File = id
		s.Covered = coveredRange(content, c, tokFile)
		s.used = make(map[string]bool)
		t.Suppressions = append(t.Suppressions, s)
	}
	return t
}

func parseComment(c parser.Comment) *Suppression {
	text := strings.TrimSpace(c.Text)
	lower := strings.ToLower(text)

	commentRange := diag.Range{Start: c.Pos.Offset(), End: c.End.Offset()}

	var codesField string
	var hasCodes bool
	var kind TargetKind = TargetEmpty

	switch {
	case strings.HasPrefix(lower, "noqa"):
		m := reNoqa.FindStringSubmatch(text)
		if m == nil {
			return &Suppression{Comment: commentRange, Kind: TargetEmpty}
		}
		if m[2] != "" {
			codesField, hasCodes = m[2], true
		} else {
			kind = TargetAll
		}
	case strings.HasPrefix(lower, "ty:") || strings.HasPrefix(lower, "ty :"):
		m := reTyIgnore.FindStringSubmatch(text)
		if m == nil {
			return &Suppression{Comment: commentRange, Kind: TargetEmpty}
		}
		if m[2] != "" {
			codesField, hasCodes = m[2], true
		} else {
			kind = TargetAll
		}
	default:
		return nil
	}

	s := &Suppression{Comment: commentRange}
	if !hasCodes {
		s.Kind = kind
		return s
	}

	s.Kind = TargetLint
	// Recompute each code's byte offset by scanning codesField's
	// position within the raw comment text, so unused-code reporting
	// can point at a precise sub-range (spec.md §4.7 "points to the
	// contiguous code sub-range").
	fieldStart := strings.Index(c.Text, codesField)
	offset := c.Pos.Offset() + 1 // +1 for the leading '#' stripped from c.Text
	if fieldStart >= 0 {
		offset += fieldStart
	}
	for _, part := range strings.Split(codesField, ",") {
		trimmedLeft := strings.TrimLeft(part, " \t")
		leadWS := len(part) - len(trimmedLeft)
		code := strings.TrimRight(trimmedLeft, " \t")
		if code == "" {
			offset += len(part) + 1
			continue
		}
		start := offset + leadWS
		s.Codes = append(s.Codes, code)
		s.CodeRanges = append(s.CodeRanges, diag.Range{Start: start, End: start + len(code)})
		offset += len(part) + 1 // +1 for the comma consumed by Split
	}
	return s
}

// coveredRange computes the suppression's covered range per spec.md
// §4.7 "Covered-range computation": starting at the prior logical-line
// boundary (extended backward across `\`-continuations), ending at the
// next newline not inside an open multiline string, with any multiline
// string crossing either endpoint pulled in whole.
//
// OwnLine comments (alone on their line, spec.md §4.7 "preceded only by
// whitespace") cover the *next* logical line instead of the one they
// terminate.
func coveredRange(content []byte, c parser.Comment, tokFile *token.File) diag.Range {
	pos := c.Pos.Offset()

	if c.OwnLine {
		start := nextLineStart(content, c.End.Offset())
		end := logicalLineEnd(content, start)
		return diag.Range{Start: start, End: end}
	}

	start := logicalLineStart(content, pos)
	end := logicalLineEnd(content, c.End.Offset())
	return extendAcrossStrings(content, start, end)
}

func nextLineStart(content []byte, from int) int {
	for i := from; i < len(content); i++ {
		if content[i] == '\n' {
			return i + 1
		}
	}
	return len(content)
}

// logicalLineStart walks backward from pos to the start of the physical
// line containing it, then keeps walking backward across any prior line
// that ends in a `\` continuation.
func logicalLineStart(content []byte, pos int) int {
	start := lineStartAt(content, pos)
	for start > 0 {
		prevEnd := start - 1 // the '\n' byte ending the previous line
		if prevEnd < 0 || content[prevEnd] != '\n' {
			break
		}
		j := prevEnd - 1
		for j >= 0 && (content[j] == ' ' || content[j] == '\t' || content[j] == '\r') {
			j--
		}
		if j < 0 || content[j] != '\\' {
			break
		}
		start = lineStartAt(content, j)
	}
	return start
}

func lineStartAt(content []byte, pos int) int {
	for i := pos; i > 0; i-- {
		if content[i-1] == '\n' {
			return i
		}
	}
	return 0
}

// logicalLineEnd walks forward from pos to the next newline that is not
// itself escaped by a preceding `\` continuation.
func logicalLineEnd(content []byte, pos int) int {
	i := pos
	for i < len(content) {
		if content[i] == '\n' {
			j := i - 1
			for j >= 0 && (content[j] == ' ' || content[j] == '\t' || content[j] == '\r') {
				j--
			}
			if j >= 0 && content[j] == '\\' {
				i++
				continue
			}
			return i
		}
		i++
	}
	return len(content)
}

// extendAcrossStrings grows [start, end) to wholly include any triple-
// quoted string literal that straddles either endpoint, by scanning from
// the top of the file and tracking open/close state. This is a
// conservative, whole-file scan rather than a token-stream lookup,
// acceptable because suppression parsing runs once per (file, revision)
// alongside comment collection (spec.md §4.7).
func extendAcrossStrings(content []byte, start, end int) diag.Range {
	type strRun struct{ s, e int }
	var runs []strRun
	i := 0
	for i < len(content) {
		if i+3 <= len(content) && (hasTriple(content, i, '"') || hasTriple(content, i, '\'')) {
			q := content[i]
			j := i + 3
			for j+3 <= len(content) && !hasTriple(content, j, q) {
				j++
			}
			closeEnd := j + 3
			if closeEnd > len(content) {
				closeEnd = len(content)
			}
			runs = append(runs, strRun{i, closeEnd})
			i = closeEnd
			continue
		}
		i++
	}
	for _, r := range runs {
		if r.s < end && start < r.e {
			if r.s < start {
				start = r.s
			}
			if r.e > end {
				end = r.e
			}
		}
	}
	return diag.Range{Start: start, End: end}
}

func hasTriple(content []byte, i int, q byte) bool {
	return content[i] == q && content[i+1] == q && content[i+2] == q
}

// IsSuppressed reports whether d is covered by some suppression in t
// with a matching target, marking that suppression used as a side
// effect (spec.md §4.7 "Querying" / "Accounting").
func (t *Table) IsSuppressed(d diag.Diagnostic) bool {
	r := d.Primary.Span.Range
	if r == nil {
		return false
	}
	for _, s := range t.Suppressions {
		if !s.Covered.Contains(*r) {
			continue
		}
		switch s.Kind {
		case TargetAll:
			s.used[""] = true
			return true
		case TargetLint:
			for _, code := range s.Codes {
				if code == d.ID {
					s.used[code] = true
					return true
				}
			}
		}
	}
	return false
}

// unusedIgnoreCode is the lint id used for reports produced by Unused.
// A suppression targeting this code can itself silence an unused-ignore
// report about some OTHER suppression it covers, but it can never silence
// a report about its own code entry — mirroring check_unused_suppressions'
// `unused_suppression.id() != suppression.id()` guard: every
// unused-ignore-comment code still gets reported as unused unless a
// distinct suppression vouches for it.
const unusedIgnoreCode = "unused-ignore-comment"

// codeSlot identifies one code entry within one suppression comment, the
// granularity at which usage and self-suppression are tracked.
type codeSlot struct {
	s   *Suppression
	idx int
}

// findSuppressor looks for a distinct unused-ignore-comment code entry
// covering s's range other than (s, selfIdx) itself.
func findSuppressor(all []*Suppression, s *Suppression, selfIdx int) (codeSlot, bool) {
	for _, other := range all {
		if other.Kind != TargetLint || !other.Covered.Contains(s.Covered) {
			continue
		}
		for j, code := range other.Codes {
			if code != unusedIgnoreCode {
				continue
			}
			if other == s && j == selfIdx {
				continue
			}
			return codeSlot{other, j}, true
		}
	}
	return codeSlot{}, false
}

// Unused reports every non-blanket suppression code in t that was never
// marked used by IsSuppressed, merging contiguous unused codes within
// one comment into a single diagnostic (spec.md §4.7 "Accounting").
func (t *Table) Unused(pathOf func(vfs.FileID) string) []diag.Diagnostic {
	// Pass 1: every code not matched by a real diagnostic is a tentative
	// unused candidate, unless some other suppression covering it targets
	// unused-ignore-comment — in which case that other slot is consumed
	// (it did its job) and this candidate is dropped instead of reported.
	var candidates []codeSlot
	consumed := make(map[codeSlot]bool)
	for _, s := range t.Suppressions {
		if s.Kind != TargetLint {
			continue
		}
		for i, code := range s.Codes {
			if s.used[code] {
				continue
			}
			if suppressor, ok := findSuppressor(t.Suppressions, s, i); ok {
				consumed[suppressor] = true
				continue
			}
			candidates = append(candidates, codeSlot{s, i})
		}
	}

	// Pass 2: a candidate collected before its own consuming suppression
	// was visited (the directive appearing later in the file) must still
	// be dropped, so re-check against the now-complete consumed set.
	unused := make(map[*Suppression]map[int]bool)
	for _, c := range candidates {
		if consumed[c] {
			continue
		}
		m := unused[c.s]
		if m == nil {
			m = make(map[int]bool)
			unused[c.s] = m
		}
		m[c.idx] = true
	}

	var out []diag.Diagnostic
	for _, s := range t.Suppressions {
		if s.Kind != TargetLint || len(unused[s]) == 0 {
			continue
		}
		var run []int // indices into s.Codes/CodeRanges of a contiguous unused run
		flush := func() {
			if len(run) == 0 {
				return
			}
			first, last := run[0], run[len(run)-1]
			merged := diag.Range{Start: s.CodeRanges[first].Start, End: s.CodeRanges[last].End}
			names := make([]string, len(run))
			for i, idx := range run {
				names[i] = s.Codes[idx]
			}
			out = append(out, diag.Diagnostic{
				ID:       unusedIgnoreCode,
				Severity: diag.Warning,
				Primary: diag.Annotation{
					Span:    diag.Span{File: s.File, Range: &merged},
					Message: "unused suppression: " + strings.Join(names, ", "),
				},
			})
			run = nil
		}
		for i := range s.Codes {
			if unused[s][i] {
				run = append(run, i)
			} else {
				flush()
			}
		}
		flush()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Primary.Span.Range.Start < out[j].Primary.Span.Range.Start
	})
	return out
}
