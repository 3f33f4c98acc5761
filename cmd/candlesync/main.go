package main

import (
	"os"

	"github.com/rustyeddy/candlesync/cmd/candlesync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
