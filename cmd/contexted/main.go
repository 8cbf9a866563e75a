package main

import (
	"os"

	"github.com/curiosum-dev/contexted/internal/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
