// Command tycore checks Python source files using an incremental
// semantic-analysis engine.
package main

import (
	"os"

	"github.com/tylang/tycore/cmd/tycore/cmd"
)

func main() {
	os.Exit(cmd.Main())
}
