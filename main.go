package main

import (
	"os"

	"github.com/newhook/pipewatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
