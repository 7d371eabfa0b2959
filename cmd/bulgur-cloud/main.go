// Command bulgur-cloud is the main entry point for the CLI binary.
// It dispatches to the server and user management subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/bulgur-cloud/bulgur-cloud/internal/cmd/server"
	"github.com/bulgur-cloud/bulgur-cloud/internal/cmd/user"
)

// main is the process entry point and forwards to run for testable logic.
func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// run parses argv and invokes the matching subcommand handler.
func run(argv []string) error {
	if len(argv) < 2 {
		usage()
		return fmt.Errorf("missing subcommand")
	}

	switch argv[1] {
	case "server":
		return server.Run(argv[2:])
	case "user":
		return user.Run(argv[2:])
	case "-h", "--help", "help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown subcommand: %s", argv[1])
	}
}

// usage prints the canonical CLI syntax to stderr.
func usage() {
	fmt.Fprintln(os.Stderr, "bulgur-cloud <server|user> [flags]")
}
