// Command conduit is the workflow automation engine CLI.
package main

import (
	"fmt"
	"os"

	"github.com/conduitflow/conduit/pkg/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
