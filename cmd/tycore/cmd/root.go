// Package cmd implements the tycore CLI, a synchronous one-shot caller
// over the checking engine. Its Command wrapper around *cobra.Command
// (SilenceErrors/SilenceUsage so errors print exactly once, via Main)
// and exit-code convention follow cmd/cue/cmd/root.go.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tylang/tycore/internal/core/diag"
	"github.com/tylang/tycore/internal/core/vfs"
)

// Command wraps *cobra.Command the way the teacher's Command does,
// giving subcommands a narrow surface (Stderr, exit-code bookkeeping)
// instead of reaching into cobra directly.
type Command struct {
	*cobra.Command
	root   *cobra.Command
	hasErr bool
}

// ErrPrintedError signals a subcommand already printed its error
// directly (e.g. via diag.Format) and Main should not print it again
// (spec.md §6 exit code "2: tool error"; distinguished from "1: one or
// more diagnostics reported" by the caller's RunE contract below).
var ErrPrintedError = fmt.Errorf("tycore: terminating because of errors")

// ErrDiagnosticsReported is returned by check when it completed
// normally but found at least one Error/Fatal-severity diagnostic
// (spec.md §6 exit code "1").
var ErrDiagnosticsReported = fmt.Errorf("tycore: diagnostics reported")

type errWriter Command

func (w *errWriter) Write(b []byte) (int, error) {
	c := (*Command)(w)
	c.hasErr = len(b) > 0
	return c.Command.OutOrStderr().Write(b)
}

// Stderr returns a writer that marks the command as having errored
// when anything is written to it.
func (c *Command) Stderr() io.Writer { return (*errWriter)(c) }

// New builds the top-level tycore command.
func New(args []string) *Command {
	root := &cobra.Command{
		Use:           "tycore",
		Short:         "analyze Python sources incrementally",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	c := &Command{Command: root, root: root}

	root.AddCommand(newCheckCmd(c))
	root.AddCommand(newStatsCmd(c))
	root.AddCommand(newVersionCmd(c))

	root.SetArgs(args)
	return c
}

// Run executes the parsed command line.
func (c *Command) Run(ctx context.Context) error {
	return c.root.ExecuteContext(ctx)
}

// Main runs the tool and returns the process exit code (spec.md §6
// "exit codes: 0 clean, 1 diagnostics, 2 tool error").
func Main() int {
	c := New(os.Args[1:])
	err := c.Run(context.Background())
	switch {
	case err == nil:
		return 0
	case err == ErrDiagnosticsReported:
		return 1
	case err == ErrPrintedError:
		return 2
	default:
		printError(c, err)
		return 2
	}
}

// printError renders err through golang.org/x/text/message the way the
// teacher's printError localizes CLI output; the printer is always
// created for English.
func printError(c *Command, err error) {
	p := message.NewPrinter(language.English)
	p.Fprintf(c.Stderr(), "tycore: %v\n", err)
}

// printDiagnostics renders diagnostics in the stable PATH:LINE:COL
// format (spec.md §6 "Diagnostic output"), returning
// ErrDiagnosticsReported if any are Error/Fatal severity.
func printDiagnostics(w io.Writer, diags []diag.Diagnostic, pathOf func(vfs.FileID) string) error {
	reported := false
	for _, d := range diags {
		fmt.Fprintln(w, diag.Format(d, pathOf))
		if d.Severity >= diag.Error {
			reported = true
		}
	}
	if reported {
		return ErrDiagnosticsReported
	}
	return nil
}
