package main

import (
	"os"

	"github.com/adalundhe/tempest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
