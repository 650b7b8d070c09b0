package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "validate":
		if err := validate(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "summary":
		if err := summary(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "params":
		if err := params(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "set":
		if err := set(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "translate":
		if err := translate(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "store":
		if err := store(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Println("nmtran version 1.0.0")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`nmtran - NONMEM control stream round-trip tool

Usage:
  nmtran <command> [options]

Commands:
  validate   Parse a control stream and report problems
  summary    Display a quick summary of a model
  params     List parameters with initial estimates and bounds
  set        Change an initial estimate and rewrite the control stream
  translate  Show the positional-to-resolved name translation
  store      Save and retrieve models from a library database
  help       Show this help message
  version    Show version information

Examples:
  # Validate a control stream
  nmtran validate run1.mod

  # Show the parameter table as JSON
  nmtran params run1.mod --json

  # Change one initial estimate in place
  nmtran set run1.mod CL 0.75 --output run2.mod

  # Save a model version to the library
  nmtran store save run1.mod --db models.db

For command-specific help, run:
  nmtran <command> --help`)
}
