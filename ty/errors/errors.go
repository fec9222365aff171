// Package errors defines the shared error type used across the engine:
// parse diagnostics, resolution misses, and rule-reported diagnostics all
// implement [Error] so they can be positioned, chained, and printed
// uniformly (spec.md §4.9, §7).
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tylang/tycore/ty/token"
)

// Error is the interface implemented by every positioned error the engine
// produces. Unlike ordinary Go errors, an Error carries a source Position
// and an optional dotted Path identifying what the error is about (e.g. a
// qualified symbol name), so callers can group and sort without parsing
// message text.
type Error interface {
	error
	Position() token.Pos
	InputPositions() []token.Pos
	Path() []string
	Msg() (format string, args []interface{})
}

// list aggregates multiple Errors behind a single error value, mirroring
// cue/errors' List: checking a file rarely stops at the first problem.
type list struct {
	errs []Error
}

func (l *list) Error() string {
	var b strings.Builder
	for i, e := range l.errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(e.Error())
	}
	return b.String()
}

// Append adds one or more errors to an existing error chain, flattening
// any list that is passed in. A nil base is treated as empty.
func Append(base error, errs ...Error) error {
	l, ok := base.(*list)
	if !ok {
		l = &list{}
		if base != nil {
			if be, ok := base.(Error); ok {
				l.errs = append(l.errs, be)
			}
		}
	}
	for _, e := range errs {
		if other, ok := error(e).(*list); ok {
			l.errs = append(l.errs, other.errs...)
			continue
		}
		l.errs = append(l.errs, e)
	}
	if len(l.errs) == 0 {
		return nil
	}
	return l
}

// Errors flattens err into a slice of individual Errors, in the order
// they were appended. A nil err yields nil.
func Errors(err error) []Error {
	switch x := err.(type) {
	case nil:
		return nil
	case *list:
		return append([]Error(nil), x.errs...)
	case Error:
		return []Error{x}
	default:
		return nil
	}
}

// Sanitize sorts the errors in err by (filename, line, column) for stable,
// deterministic CLI output (spec.md §5 determinism requirement).
func Sanitize(err error) error {
	errs := Errors(err)
	sort.SliceStable(errs, func(i, j int) bool {
		pi, pj := errs[i].Position().Position(), errs[j].Position().Position()
		if pi.Filename != pj.Filename {
			return pi.Filename < pj.Filename
		}
		if pi.Line != pj.Line {
			return pi.Line < pj.Line
		}
		return pi.Column < pj.Column
	})
	var out error
	for _, e := range errs {
		out = Append(out, e)
	}
	return out
}

// posError is a minimal concrete Error.
type posError struct {
	pos     token.Pos
	inPos   []token.Pos
	path    []string
	format  string
	args    []interface{}
}

// Newf creates a positioned Error with a printf-style message.
func Newf(pos token.Pos, format string, args ...interface{}) Error {
	return &posError{pos: pos, format: format, args: args}
}

// WithPath attaches a dotted path (e.g. qualified symbol name) to an error.
func WithPath(err Error, path ...string) Error {
	switch e := err.(type) {
	case *posError:
		cp := *e
		cp.path = path
		return &cp
	default:
		return err
	}
}

func (e *posError) Error() string {
	msg := fmt.Sprintf(e.format, e.args...)
	if e.pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.pos.Position(), msg)
	}
	return msg
}

func (e *posError) Position() token.Pos         { return e.pos }
func (e *posError) InputPositions() []token.Pos { return e.inPos }
func (e *posError) Path() []string              { return e.path }
func (e *posError) Msg() (string, []interface{}) {
	return e.format, e.args
}

// Print writes every error in err to w, one per line, using the stable
// "PATH:LINE:COL: MESSAGE" format required by spec.md §6 for CLI mode.
func Print(w interface{ WriteString(string) (int, error) }, err error) {
	for _, e := range Errors(err) {
		pos := e.Position().Position()
		msg := e.Error()
		if pos.IsValid() {
			msg = fmt.Sprintf("%s: %s", pos, msgOnly(e))
		}
		w.WriteString(msg + "\n")
	}
}

func msgOnly(e Error) string {
	format, args := e.Msg()
	return fmt.Sprintf(format, args...)
}
