// canvasflowc is the canvasflow bundle tool: it checks application
// bundles, classifies their handlers for server-side rendering, runs
// individual handlers, and inspects persisted variable stores.
package main

import (
	"flag"
	"fmt"
	"os"
)

// Command represents a sub-command of canvasflowc
type Command struct {
	Name        string
	Description string
	FlagSet     *flag.FlagSet
	Run         func() error
}

var (
	// Global flags
	verbose = flag.Bool("verbose", false, "Show detailed output")

	commands = make(map[string]*Command)
)

func main() {
	defineCommands()

	flag.Parse()
	args := flag.Args()

	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: canvasflowc <command> [options]")
		fmt.Fprintln(os.Stderr, "Available commands:")
		for name, cmd := range commands {
			fmt.Fprintf(os.Stderr, "  %s\t%s\n", name, cmd.Description)
		}
		flag.PrintDefaults()
		os.Exit(1)
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		os.Exit(1)
	}

	if err := cmd.FlagSet.Parse(args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if err := cmd.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func defineCommands() {
	defineCheckCommand()
	defineRunCommand()
	defineVarsCommand()
}
