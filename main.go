// Package main provides the entry point for arm7sim.
// arm7sim is a cycle-accurate simulator of a 5-stage pipelined
// ARM7-style CPU.
//
// For the full CLI, use: go run ./cmd/arm7sim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("arm7sim - ARM7-style pipelined CPU simulator")
	fmt.Println("")
	fmt.Println("Usage: arm7sim [options] <program.bin|program.hex>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -timing    Run the cycle-accurate pipeline model")
	fmt.Println("  -config    Path to timing configuration JSON file")
	fmt.Println("  -cycles    Maximum number of cycles to simulate")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/arm7sim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/arm7sim' instead.")
	}
}
