// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/ManuGH/headernorm/internal/config"
)

func runConfigCLI(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stderr)
		return 0
	}

	switch args[0] {
	case "init":
		return runConfigInit(args[1:], stdout, stderr)
	case "validate":
		return runConfigValidate(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown subcommand: %s\n\n", args[0])
		printConfigUsage(stderr)
		return 2
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  headernormd config init [--force] <path>")
	fmt.Fprintln(w, "  headernormd config validate <path>")
}

func runConfigInit(args []string, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("headernormd config init", flag.ContinueOnError)
	fset.SetOutput(stderr)
	force := fset.Bool("force", false, "overwrite an existing file")
	if err := fset.Parse(args); err != nil {
		return 2
	}
	if fset.NArg() != 1 {
		printConfigUsage(stderr)
		return 2
	}
	path := fset.Arg(0)

	if _, err := os.Stat(path); err == nil && !*force {
		fmt.Fprintf(stderr, "Error: %s already exists (use --force to overwrite)\n", path)
		return 1
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if err := config.WriteFile(path, config.Default()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "wrote default configuration to %s\n", path)
	return 0
}

func runConfigValidate(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		printConfigUsage(stderr)
		return 2
	}
	path := args[0]

	cfg, err := config.LoadFile(path)
	if err == nil {
		err = config.Validate(cfg)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error in %s:\n  %v\n", path, err)
		return 1
	}

	fmt.Fprintf(stdout, "%s is valid\n", path)
	return 0
}
