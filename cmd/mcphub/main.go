package main

import (
	"os"

	"github.com/harun/mcphub/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
