package main

import (
	"os"

	"sttbridge/cmd/sttbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
