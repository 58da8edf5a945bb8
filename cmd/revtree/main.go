package main

import (
	"fmt"
	"os"

	"github.com/obiyadev/revtree/cmd/revtree/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
