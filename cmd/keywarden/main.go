package main

import (
	"errors"
	"fmt"
	"os"

	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := Execute(); err != nil {
		if errors.Is(err, errFindingsFound) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "keywarden: %v\n", err)
		os.Exit(2)
	}
}
