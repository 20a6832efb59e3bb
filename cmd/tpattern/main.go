package main

import (
	"os"

	"github.com/solatis/tpattern/cmd/tpattern/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
