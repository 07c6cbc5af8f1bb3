package main

import (
	"os"

	"github.com/wwwzy/redagent/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
