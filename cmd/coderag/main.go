// Command coderag is a minimal entry point for exercising the retrieval
// pipeline by hand: index a repository, run a search against it, and report
// the index's status. It is not a server; operators wanting the full
// hybrid-search surface wire the internal/ packages into their own service.
package main

import (
	"fmt"
	"os"

	"github.com/ossara-labs/coderag/cmd/coderag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
