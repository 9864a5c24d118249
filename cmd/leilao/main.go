// Package main is the entry point for the leilao CLI.
package main

import (
	"os"

	"github.com/jmylchreest/leilao/cmd/leilao/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
