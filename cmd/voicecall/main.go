// Package main is the voicecall CLI: full-duplex voice calls with a voice
// agent deployment from the terminal.
//
// Usage:
//
//	voicecall [flags] <command> [subcommand] [args]
//
// Commands:
//
//	call       - Start a call with the current (or -c) context
//	config     - Manage deployment contexts
//	devices    - List audio devices
//	version    - Show version information
//
// A .env file in the working directory is loaded first, so settings such as
// VOICECALL_API_KEY can live next to a project.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/haivivi/callkit/cmd/voicecall/commands"
)

func main() {
	// A missing .env is fine.
	_ = godotenv.Load()

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
