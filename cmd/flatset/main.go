package main

import (
	"os"

	"github.com/msto63/flatset/cmd/flatset/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
