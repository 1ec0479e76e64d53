// Command codeatlas indexes a codebase into semantic units and serves
// them to MCP clients.
package main

import (
	"fmt"
	"os"

	"github.com/codeatlas/codeatlas/cmd/codeatlas/cmd"
	atlaserrors "github.com/codeatlas/codeatlas/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, atlaserrors.FormatForCLI(err))
		os.Exit(1)
	}
}
