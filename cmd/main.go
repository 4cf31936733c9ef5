package main

// Entry point: runs the Cobra commands and maps any returned error to exit status 1

import (
	"fmt"
	"os"

	"dog-holders/cmd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
