// Command gepctl administers a group manager and produces encrypted
// content from the command line. State lives in the configured store;
// packets are exchanged as Data wire files.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gepctl:", err)
		os.Exit(1)
	}
}
