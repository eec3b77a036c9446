// Command vectordb runs the vectordb HTTP server and its supporting CLI.
package main

import (
	"fmt"
	"os"

	"github.com/vectorlib/vectordb/cmd/vectordb/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
