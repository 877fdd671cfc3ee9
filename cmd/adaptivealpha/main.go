package main

import (
	"os"

	"github.com/wlshlad85/adaptivealpha/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
