// Command marxist-search is the CLI entry point: it serves the HTTP façade,
// runs one-shot searches, triggers ingestion, and reports on a data
// directory's state.
package main

import (
	"fmt"
	"os"

	"github.com/domwxyz/marxist-search/cmd/marxist-search/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
