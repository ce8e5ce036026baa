package main

import (
	"os"

	"github.com/gerenciause-netizen/smart-trader/src/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
