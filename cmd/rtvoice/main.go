// Package main provides the rtvoice CLI tool.
//
// Usage:
//
//	rtvoice [flags] <command> [args]
//
// Commands:
//
//	chat     - Realtime voice conversation
//	devices  - List audio devices
//	config   - Configuration management
//
// Configuration:
//
//	The CLI stores configuration in ~/.giztoy/rtvoice/
//	Use 'rtvoice config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/rtvoice/cmd/rtvoice/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
