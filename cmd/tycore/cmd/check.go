package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tylang/tycore/internal/core/engine"
	"github.com/tylang/tycore/internal/core/resolve"
	"github.com/tylang/tycore/internal/core/sched"
	"github.com/tylang/tycore/internal/core/vfs"
	"github.com/tylang/tycore/internal/rules"
)

const checkDoc = `check runs the semantic engine's built-in checks over the given files.

Files named on the command line are treated as first-party sources; any
module they import is resolved through the configured search path and
indexed (and, if first-party, checked in turn).

Examples:

  tycore check pkg/mod.py
  tycore check --target=3.12 --extra-paths=stubs pkg/*.py
`

func newCheckCmd(c *Command) *cobra.Command {
	var flags checkFlags
	cmd := &cobra.Command{
		Use:   "check [files...]",
		Short: "check Python files",
		Long:  checkDoc,
		RunE: func(cc *cobra.Command, args []string) error {
			return runCheck(c, &flags, args)
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

type checkFlags struct {
	extraPaths      string
	srcRoot         string
	customTypeshed  string
	sitePackages    string
	vendoredTypeshed string
	target          string
	parallel        bool
}

func (f *checkFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.extraPaths, "extra-paths", "", "extra first-party search roots, PATH-list separated")
	fs.StringVar(&f.srcRoot, "src-root", ".", "first-party source root")
	fs.StringVar(&f.customTypeshed, "custom-typeshed", "", "custom typeshed root, overriding the vendored one")
	fs.StringVar(&f.sitePackages, "site-packages", "", "third-party site-packages roots, PATH-list separated")
	fs.StringVar(&f.vendoredTypeshed, "vendored-typeshed", "", "vendored typeshed root")
	fs.StringVar(&f.target, "target", "3.12", "target Python version, e.g. 3.12")
	fs.BoolVar(&f.parallel, "parallel", true, "check files using a worker pool instead of serially")
}

func runCheck(c *Command, flags *checkFlags, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("check: no files given")
	}

	target, err := parseTargetVersion(flags.target)
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(c.Stderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	proj := engine.New(log, rules.UnboundName{})

	proj.Resolver.SetSearchPaths(resolve.SearchPathSettings{
		ExtraPaths:       engine.SplitSearchPath(flags.extraPaths),
		SrcRoot:          flags.srcRoot,
		CustomTypeshed:   flags.customTypeshed,
		SitePackages:     engine.SplitSearchPath(flags.sitePackages),
		VendoredTypeshed: flags.vendoredTypeshed,
		TargetVersion:    target,
	})

	var files []vfs.FileID
	for _, path := range args {
		files = append(files, proj.Store.FileForPath(path, vfs.KindFirstParty))
	}

	mode := sched.Serial
	if flags.parallel {
		mode = sched.Parallel
	}

	diags, err := proj.Check(c.Context(), files, mode)
	if err != nil {
		return err
	}
	return printDiagnostics(c.OutOrStdout(), diags, proj.PathOf)
}

func parseTargetVersion(s string) (resolve.Version, error) {
	var major, minor int
	if _, err := fmt.Sscanf(s, "%d.%d", &major, &minor); err != nil {
		return resolve.Version{}, fmt.Errorf("check: invalid --target %q, want MAJOR.MINOR: %w", s, err)
	}
	return resolve.Version{Major: major, Minor: minor}, nil
}
