// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// bastion is the operator CLI for the bastion authorization library.
// It seeds a directory from a JSONC file, creates sessions and mints
// session tokens, evaluates access checks, and manages the token
// signing keypair.
package main

import (
	"fmt"
	"os"

	"github.com/bastion-auth/bastion/lib/version"
)

func main() {
	if err := run(); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

func run() error {
	if len(os.Args) < 2 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	subcommand := os.Args[1]
	switch subcommand {
	case "seed":
		return runSeed(os.Args[2:])
	case "session":
		return runSession(os.Args[2:])
	case "check":
		return runCheck(os.Args[2:])
	case "keygen":
		return runKeygen(os.Args[2:])
	case "token":
		return runToken(os.Args[2:])
	case "review":
		return runReview(os.Args[2:])
	case "version", "--version":
		fmt.Printf("bastion %s\n", version.Info())
		return nil
	case "-h", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %q", subcommand)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: bastion <subcommand> [flags]

Subcommands:
  seed        Load a JSONC seed file into the directory
  session     Authenticate a user and activate a session
  check       Evaluate an access check for a user
  keygen      Generate the session token signing keypair
  token       Inspect or verify a session token
  review      Inspect a user's or role's assignments and permissions
  version     Print version information

Run 'bastion <subcommand> --help' for subcommand flags.
`)
}

// denyError carries the deny exit code. A deny is not an execution
// failure: the check ran to completion and the answer was no, so it
// exits 1 while execution failures exit 2.
type denyError struct {
	message string
}

func (e *denyError) Error() string { return e.message }
func (e *denyError) ExitCode() int { return 1 }
