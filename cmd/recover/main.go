package main

import (
	"fmt"
	"os"

	"coursecraft-backend/cmd/recover/commands"
)

var version = "dev"

func main() {
	if err := commands.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
