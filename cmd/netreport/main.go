// Package main is the entry point for netreport.
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
