// Package main provides the entry point for dfgasm.
// dfgasm generates and assembles programs for the PEs of a CGRA fabric.
//
// The tools live under cmd/: dfggen turns a workload configuration into
// per-PE assembly, dfgasm assembles it into memory images.
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("dfgasm - CGRA PE program generator and assembler")
	fmt.Println("")
	fmt.Println("  go run ./cmd/dfggen [options] <config_file> [output_dir]")
	fmt.Println("  go run ./cmd/dfgasm [options] <file_list> [output_dir]")
	fmt.Println("")
	fmt.Println("Run either tool with -h for its options.")

	if len(os.Args) > 1 {
		os.Exit(1)
	}
}
