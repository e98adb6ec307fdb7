package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/meshbroker/pkg/httpclient"
)

func newHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check daemon health",
		Long:  "Check the health status of a running meshbroker daemon",
		Args:  cobra.NoArgs,
		RunE:  runHealth,
	}

	return cmd
}

func runHealth(cmd *cobra.Command, args []string) error {
	client, err := httpclient.NewClient(httpclient.Config{ServerURL: serverURL, Timeout: timeout})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	health, err := client.GetHealth(ctx)
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	out := cmd.OutOrStdout()
	if health.Healthy {
		fmt.Fprintf(out, "Node %s is healthy\n", health.NodeID)
	} else {
		fmt.Fprintf(out, "Node %s is not healthy\n", health.NodeID)
	}
	fmt.Fprintf(out, "EventLog: %t\n", health.EventLogHealthy)
	fmt.Fprintf(out, "RoutingTable: %t\n", health.RoutingTableHealthy)
	fmt.Fprintf(out, "Bridge: %t\n", health.BridgeHealthy)
	fmt.Fprintf(out, "Destinations: %d\n", health.Destinations)
	fmt.Fprintf(out, "Subscriptions: %d\n", health.Subscriptions)
	fmt.Fprintf(out, "Shared Groups: %d\n", health.SharedGroups)
	fmt.Fprintf(out, "Namespace Policies: %d\n", health.NamespacePolicies)
	if health.Message != "" {
		fmt.Fprintf(out, "Message: %s\n", health.Message)
	}

	if !health.Healthy {
		return fmt.Errorf("node %s is not healthy", health.NodeID)
	}
	return nil
}
