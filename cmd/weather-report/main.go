package main

import (
	"os"

	"github.com/i474232898/weather-report/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
