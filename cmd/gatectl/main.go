// Command gatectl is the operator CLI: route rewrites, password hashes,
// test tokens, and config checks.
package main

import (
	"fmt"
	"os"

	"github.com/MrEthical07/goGate/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
