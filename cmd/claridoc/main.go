// Package main provides the entry point for the claridoc CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/claridoc/cmd/claridoc/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
