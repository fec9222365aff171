package suppress

import (
	"sort"
	"strings"

	"github.com/tylang/tycore/internal/core/diag"
	"github.com/tylang/tycore/internal/core/vfs"
	"github.com/tylang/tycore/ty/token"
)

// Target is one diagnostic a caller wants suppressed, the input to
// AddSuppressions (spec.md §4.7 "Adding suppressions").
type Target struct {
	Diagnostic diag.Diagnostic
	Code       string
}

// AddSuppressions computes a Fix that inserts or extends `# ty:ignore[...]`
// comments to cover every target, batching diagnostics that share a start
// line into a single comment (spec.md §4.7 steps 1-5).
func AddSuppressions(tokFile *token.File, content []byte, file vfs.FileID, existing *Table, targets []Target) *diag.Fix {
	byLine := make(map[int][]Target)
	var lines []int
	for _, t := range targets {
		r := t.Diagnostic.Primary.Span.Range
		if r == nil {
			continue
		}
		line := r.StartLine
		if _, ok := byLine[line]; !ok {
			lines = append(lines, line)
		}
		byLine[line] = append(byLine[line], t)
	}
	sort.Ints(lines)

	fix := &diag.Fix{Title: "add suppression comments", Safety: diag.Unsafe}

	for _, line := range lines {
		ts := byLine[line]
		codes := make([]string, 0, len(ts))
		seen := make(map[string]bool)
		for _, t := range ts {
			if !seen[t.Code] {
				seen[t.Code] = true
				codes = append(codes, t.Code)
			}
		}
		sort.Strings(codes)

		lineStart := tokFile.LineStart(line).Offset()
		lineEnd := logicalLineEnd(content, lineStart)

		if s := findSuppressionOnLine(existing, lineStart, lineEnd); s != nil && s.Kind == TargetLint {
			fix.Edits = append(fix.Edits, extendSuppressionEdit(content, file, s, codes))
			continue
		}

		insertAt := lineEnd
		replacement := " # ty:ignore[" + strings.Join(codes, ", ") + "]"
		// Trailing whitespace before the newline is replaced rather than
		// preserved (spec.md §4.7 step 4 "replacing any trailing whitespace").
		trimStart := insertAt
		for trimStart > lineStart && (content[trimStart-1] == ' ' || content[trimStart-1] == '\t') {
			trimStart--
		}
		fix.Edits = append(fix.Edits, diag.Edit{
			File:        file,
			Range:       diag.Range{Start: trimStart, End: insertAt},
			Replacement: replacement,
		})
	}
	return fix
}

func findSuppressionOnLine(t *Table, lineStart, lineEnd int) *Suppression {
	if t == nil {
		return nil
	}
	for _, s := range t.Suppressions {
		if s.Comment.Start >= lineStart && s.Comment.Start < lineEnd {
			return s
		}
	}
	return nil
}

// extendSuppressionEdit appends any of newCodes not already present in s
// to its bracketed code list (spec.md §4.7 step 2: "insert the code
// before the closing bracket").
func extendSuppressionEdit(content []byte, file vfs.FileID, s *Suppression, newCodes []string) diag.Edit {
	have := make(map[string]bool, len(s.Codes))
	for _, c := range s.Codes {
		have[c] = true
	}
	var add []string
	for _, c := range newCodes {
		if !have[c] {
			add = append(add, c)
		}
	}
	insertAt := s.Comment.End
	for i := s.Comment.End - 1; i >= s.Comment.Start; i-- {
		if content[i] == ']' {
			insertAt = i
			break
		}
	}
	if len(add) == 0 {
		return diag.Edit{File: file, Range: diag.Range{Start: insertAt, End: insertAt}, Replacement: ""}
	}
	sep := ", "
	if len(s.Codes) == 0 {
		sep = ""
	}
	return diag.Edit{
		File:        file,
		Range:       diag.Range{Start: insertAt, End: insertAt},
		Replacement: sep + strings.Join(add, ", "),
	}
}
