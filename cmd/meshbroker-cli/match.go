package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/meshbroker/internal/routingtable"
	routingtablepkg "github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

func newMatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match <filter> <topic>...",
		Short: "Test topics against a wildcard filter",
		Long: `Test topics against a subscription filter. "+" matches one level and
"#" matches the remaining levels. A "$share/<name>/" prefix is accepted
and ignored for matching.`,
		Example: `  meshbroker-cli match 'sensor/+/temp' sensor/room1/temp sensor/room1/humidity`,
		Args:    cobra.MinimumNArgs(2),
		RunE:    runMatch,
	}
	return cmd
}

func runMatch(cmd *cobra.Command, args []string) error {
	sctx := routingtablepkg.NewSubscriptionContext(args[0])
	out := cmd.OutOrStdout()
	for _, topic := range args[1:] {
		result := "no match"
		if routingtable.MatchesContext(sctx, topic) {
			result = "match"
		}
		fmt.Fprintf(out, "%s\t%s\n", topic, result)
	}
	return nil
}
