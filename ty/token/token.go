// Package token defines source positions and file/line/column bookkeeping
// shared by the parser, the semantic index, and the diagnostic model.
package token

import (
	"fmt"
	"sort"
	"sync"
)

// Pos is a compact source position: a file id together with a byte offset
// into that file. The zero Pos is NoPos, which denotes "no position".
type Pos struct {
	file   *File
	offset int
}

// NoPos is the zero value for Pos; it has no file and no offset.
var NoPos = Pos{}

// IsValid reports whether the position refers to a real file.
func (p Pos) IsValid() bool { return p.file != nil }

// File returns the file the position belongs to, or nil for NoPos.
func (p Pos) File() *File { return p.file }

// Offset returns the byte offset of the position within its file.
func (p Pos) Offset() int { return p.offset }

// Position expands a Pos into a human-readable Position.
func (p Pos) Position() Position {
	if p.file == nil {
		return Position{}
	}
	return p.file.position(p.offset)
}

// Add returns the position n bytes after p, within the same file.
func (p Pos) Add(n int) Pos {
	if p.file == nil {
		return p
	}
	return Pos{file: p.file, offset: p.offset + n}
}

func (p Pos) String() string {
	return p.Position().String()
}

// Position is a printable, file/line/column form of a Pos.
type Position struct {
	Filename string
	Offset   int
	Line     int
	Column   int
}

// IsValid reports whether the line number is set.
func (pos Position) IsValid() bool { return pos.Line > 0 }

func (pos Position) String() string {
	s := pos.Filename
	if pos.IsValid() {
		if s != "" {
			s += ":"
		}
		s += fmt.Sprintf("%d:%d", pos.Line, pos.Column)
	}
	if s == "" {
		s = "-"
	}
	return s
}

// File tracks the source text and line-offset table for one source file (or
// virtual document), and hands out Pos values within it. A File is created
// once per (path, revision) pair by the File Store and is immutable once
// its content has been fully scanned.
type File struct {
	mu       sync.Mutex
	name     string
	content  []byte
	lines    []int // byte offset of the start of each line
	revision int64
}

// NewFile creates a File for the given name and content, with the given
// revision stamp (typically the database revision at which the content
// was observed).
func NewFile(name string, content []byte, revision int64) *File {
	f := &File{name: name, content: content, revision: revision}
	f.lines = []int{0}
	for i, b := range content {
		if b == '\n' && i+1 < len(content) {
			f.lines = append(f.lines, i+1)
		}
	}
	return f
}

// Name returns the file's path or virtual URI.
func (f *File) Name() string { return f.name }

// Content returns a copy of the file's text.
func (f *File) Content() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.content))
	copy(out, f.content)
	return out
}

// Size returns the length of the content in bytes.
func (f *File) Size() int { return len(f.content) }

// Revision returns the revision stamp this File was created with.
func (f *File) Revision() int64 { return f.revision }

// Pos returns the position at the given byte offset within this file.
func (f *File) Pos(offset int) Pos {
	if offset < 0 {
		offset = 0
	}
	if offset > len(f.content) {
		offset = len(f.content)
	}
	return Pos{file: f, offset: offset}
}

func (f *File) position(offset int) Position {
	f.mu.Lock()
	lines := f.lines
	f.mu.Unlock()
	// lines is sorted ascending; find the last line start <= offset.
	i := sort.Search(len(lines), func(i int) bool { return lines[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return Position{
		Filename: f.name,
		Offset:   offset,
		Line:     i + 1,
		Column:   offset - lines[i] + 1,
	}
}

// LineStart returns the Pos of the first byte of the given 1-based line
// number, or NoPos if the line is out of range.
func (f *File) LineStart(line int) Pos {
	f.mu.Lock()
	defer f.mu.Unlock()
	if line < 1 || line > len(f.lines) {
		return NoPos
	}
	return Pos{file: f, offset: f.lines[line-1]}
}

// LineCount returns the number of lines recorded for the file.
func (f *File) LineCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lines)
}
