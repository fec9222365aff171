package cmd

import (
	"fmt"
	"log/slog"

	"github.com/kr/pretty"
	"github.com/spf13/cobra"

	"github.com/tylang/tycore/internal/core/engine"
	"github.com/tylang/tycore/internal/core/resolve"
	"github.com/tylang/tycore/internal/core/vfs"
)

const statsDoc = `stats prints debug counters for the semantic index of the given files.

This is a debugging aid, not a stable API: the printed shape may change
between releases.
`

// Stats is the per-file debug dump stats prints (kr/pretty-formatted).
type Stats struct {
	File    string
	Scopes  int
	Symbols int
	Members int
}

func newStatsCmd(c *Command) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:    "stats [files...]",
		Short:  "print semantic index debug counters",
		Long:   statsDoc,
		Hidden: true,
		RunE: func(cc *cobra.Command, args []string) error {
			return runStats(c, target, args)
		},
	}
	cmd.Flags().StringVar(&target, "target", "3.12", "target Python version, e.g. 3.12")
	return cmd
}

func runStats(c *Command, target string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("stats: no files given")
	}
	ver, err := parseTargetVersion(target)
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(c.Stderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	proj := engine.New(log)
	proj.Resolver.SetSearchPaths(resolve.SearchPathSettings{SrcRoot: ".", TargetVersion: ver})

	for _, path := range args {
		id := proj.Store.FileForPath(path, vfs.KindFirstParty)
		idx, err := proj.Semantic.Index(id)
		if err != nil {
			return err
		}
		s := Stats{File: path, Scopes: len(idx.Scopes())}
		for _, scope := range idx.Scopes() {
			s.Symbols += len(idx.Symbols(scope.ID))
			s.Members += len(idx.Members(scope.ID))
		}
		pretty.Fprintf(c.OutOrStdout(), "%# v\n", s)
	}
	return nil
}
