// SPDX-License-Identifier: Apache-2.0
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"jolt/internal/iltext"
	"jolt/internal/lift"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: jolt <file.jil>")
		os.Exit(1)
	}

	path := os.Args[1]
	source, err := os.ReadFile(path)
	if err != nil {
		color.Red("Failed to read file: %s", err)
		os.Exit(1)
	}

	program, err := iltext.Parse(string(source))
	if err != nil {
		color.Red("❌ Invalid IL in %s: %s", path, err)
		os.Exit(1)
	}

	fmt.Println(program.String())

	script, err := lift.Lift(program)
	if err != nil {
		color.Red("Failed to lift: %s", err)
		os.Exit(1)
	}
	fmt.Println(script)

	color.Green("✅ Successfully processed %s", path)
}
