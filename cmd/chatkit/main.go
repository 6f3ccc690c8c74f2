// Package main provides the entry point for the chatkit customer widget.
package main

import (
	"fmt"
	"os"

	"github.com/plushhaven/chatkit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
