package main

import (
	"os"

	"github.com/psantana5/timers/cmd/timers/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
