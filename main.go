package main

import (
	"os"

	"github.com/blacktop/pagepost/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
