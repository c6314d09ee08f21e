package main

import (
	"os"

	"github.com/latticehq/lattice/cmd/lattice"
)

func main() {
	if err := lattice.Execute(); err != nil {
		os.Exit(1)
	}
}
