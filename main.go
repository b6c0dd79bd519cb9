// ./main.go
package main

import (
	"github.com/wardrobelabs/relist/cmd"
)

// main is the entry point for the relist CLI.
func main() {
	// The root command handles all command-line parsing, configuration and
	// execution.
	cmd.Execute()
}
