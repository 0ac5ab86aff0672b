package main

import (
	"os"

	"github.com/SweetVinegar/021up-game/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
