// Package main is the entry point for tabbench.
//
// tabbench drives the adaptive concurrency-probe benchmark engine
// against a catalog-supplied plan and reports the results.
package main

import (
	"os"

	"github.com/BotBlake/tabbench/cmd/tabbench/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
