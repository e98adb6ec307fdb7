package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	serverURL string
	timeout   time.Duration
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "meshbroker-cli",
		Short: "meshbroker routing core command line interface",
		Long: `meshbroker-cli exercises the broker's routing core offline: wildcard
matching, selector evaluation, namespace policy lookup and end-to-end
routing through an in-process broker. The health command queries a
running daemon.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "meshbroker HTTP endpoint")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(newMatchCommand())
	rootCmd.AddCommand(newEvalCommand())
	rootCmd.AddCommand(newNamespaceCommand())
	rootCmd.AddCommand(newRouteCommand())
	rootCmd.AddCommand(newHealthCommand())

	return rootCmd
}
