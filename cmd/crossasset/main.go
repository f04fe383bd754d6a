package main

import (
	"os"

	"github.com/wonny/crossasset/cmd/crossasset/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
