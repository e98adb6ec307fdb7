package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/meshbroker/internal/namespace"
	"github.com/rmacdonaldsmith/meshbroker/internal/selector"
)

func newNamespaceCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "namespace",
		Short: "Inspect namespace forwarding policy",
	}
	cmd.AddCommand(newNamespaceLookupCommand())
	return cmd
}

func newNamespaceLookupCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "lookup <topic>...",
		Short: "Show the namespace policy governing topics",
		Long: `Load a policy file with a "namespaces" list and show, for each topic,
the deepest namespace governing it and whether its depth limit allows
the topic to be forwarded.`,
		Example: `  meshbroker-cli namespace lookup --file namespaces.yaml sensor/room1/temp`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNamespaceLookup(cmd, file, args)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Policy file (YAML, JSON or TOML)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runNamespaceLookup(cmd *cobra.Command, file string, topics []string) error {
	records, err := namespace.ReadFile(file)
	if err != nil {
		return err
	}
	filters, errs := namespace.Build(records, selector.NewEngine(nil), quietLogger(cmd))

	out := cmd.OutOrStdout()
	for _, err := range errs {
		fmt.Fprintf(out, "dropped: %v\n", err)
	}
	for _, topic := range topics {
		f, ok := filters.Match(topic)
		if !ok {
			fmt.Fprintf(out, "%s\tno policy\n", topic)
			continue
		}
		fmt.Fprintf(out, "%s\tnamespace=%s depth=%d within_depth=%t force_priority=%t",
			topic, f.Namespace(), f.Depth(), f.AllowsDepth(topic), f.ForcePriority())
		if sel := f.Selector(); sel != nil {
			fmt.Fprintf(out, " filter=%q", sel.String())
		}
		fmt.Fprintln(out)
	}
	return nil
}
