package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "turnclient",
		Short: "Command-line client for the turn-based battle server",
		Long: `turnclient connects to a turn-based battle server over TCP, TLS or
WebSocket, authenticates with a token, and prints the match and battle
messages it receives.

Settings come from the environment and an optional .env file
(TURN_SERVER_HOST, TURN_TCP_PORT, TURN_TOKEN, ...); flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		connectCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
