package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-quicktest/qt"

	"github.com/tylang/tycore/internal/core/resolve"
)

func TestParseTargetVersionParsesMajorMinor(t *testing.T) {
	v, err := parseTargetVersion("3.12")
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, resolve.Version{Major: 3, Minor: 12}))
}

func TestParseTargetVersionRejectsMalformed(t *testing.T) {
	_, err := parseTargetVersion("not-a-version")
	qt.Assert(t, qt.IsNotNil(err))
}

func newTestCommand(args []string) (*Command, *bytes.Buffer, *bytes.Buffer) {
	var out, errb bytes.Buffer
	c := New(args)
	c.SetOut(&out)
	c.SetErr(&errb)
	return c, &out, &errb
}

func TestCheckCommandCleanFileExitsWithNoError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.py")
	qt.Assert(t, qt.IsNil(os.WriteFile(path, []byte("x = 1\nprint(x)\n"), 0o644)))

	c, out, _ := newTestCommand([]string{"check", "--parallel=false", path})
	err := c.Run(context.Background())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(out.String(), ""))
}

func TestCheckCommandUnboundNameReturnsErrDiagnosticsReported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.py")
	qt.Assert(t, qt.IsNil(os.WriteFile(path, []byte("print(x)\n"), 0o644)))

	c, out, _ := newTestCommand([]string{"check", "--parallel=false", path})
	err := c.Run(context.Background())
	qt.Assert(t, qt.Equals(err, ErrDiagnosticsReported))
	qt.Assert(t, qt.IsTrue(strings.Contains(out.String(), "is unbound")))
}

func TestCheckCommandNoFilesReturnsError(t *testing.T) {
	c, _, _ := newTestCommand([]string{"check"})
	err := c.Run(context.Background())
	qt.Assert(t, qt.IsNotNil(err))
}

func TestVersionCommandPrintsVersionAndGoVersion(t *testing.T) {
	c, out, _ := newTestCommand([]string{"version"})
	err := c.Run(context.Background())
	qt.Assert(t, qt.IsNil(err))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	qt.Assert(t, qt.HasLen(lines, 2))
	qt.Assert(t, qt.IsTrue(strings.HasPrefix(lines[0], "tycore version ")))
	qt.Assert(t, qt.IsTrue(strings.HasPrefix(lines[1], "go version ")))
}

func TestStatsCommandPrintsCountersForGivenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.py")
	qt.Assert(t, qt.IsNil(os.WriteFile(path, []byte("def f():\n    pass\n"), 0o644)))

	c, out, _ := newTestCommand([]string{"stats", path})
	err := c.Run(context.Background())
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsTrue(strings.Contains(out.String(), "Scopes:")))
}

func TestStatsCommandNoFilesReturnsError(t *testing.T) {
	c, _, _ := newTestCommand([]string{"stats"})
	err := c.Run(context.Background())
	qt.Assert(t, qt.IsNotNil(err))
}
