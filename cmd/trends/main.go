// Command trends analyzes regional case notification data: it fits the
// doubling time of cumulative cases over sliding windows, derives
// reproduction estimates and rates, and ranks regions.
//
// Usage:
//
//	trends analyze [--xlsx out.xlsx] [--no-color]
//	trends serve [--interval 15m]
//
// Settings are read from the environment; see internal/config.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
