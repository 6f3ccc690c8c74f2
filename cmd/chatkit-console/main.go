// Package main provides the entry point for the chatkit operator console.
package main

import (
	"fmt"
	"os"

	"github.com/plushhaven/chatkit/internal/cli"
)

func main() {
	if err := cli.ExecuteConsole(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
