// Command maptool transforms MBTiles vector tile archives into smaller,
// domain-specialized archives by dropping unwanted layers and filtering
// street features to a whitelisted set of road kinds.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:     "maptool",
		Short:   "Filter MVT layers and street kinds inside an MBTiles archive",
		Version: fmt.Sprintf("%s (commit %s)", version, commit),
	}

	root.AddCommand(newProcessCmd())
	root.AddCommand(newProfileCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
