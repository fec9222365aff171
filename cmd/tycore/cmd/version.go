package cmd

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

func newVersionCmd(c *Command) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print tycore version",
		RunE: func(cc *cobra.Command, args []string) error {
			return runVersion(c)
		},
	}
}

func runVersion(c *Command) error {
	w := c.OutOrStdout()
	fmt.Fprintf(w, "tycore version %s\n", moduleVersion())
	fmt.Fprintf(w, "go version %s\n", runtime.Version())
	return nil
}

func moduleVersion() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok || bi.Main.Version == "" {
		return "(devel)"
	}
	return bi.Main.Version
}
