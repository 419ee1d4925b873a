package main

import (
	"os"

	"github.com/sanket-dev/sanket/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
