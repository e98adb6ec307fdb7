package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/meshbroker/internal/selector"
	"github.com/rmacdonaldsmith/meshbroker/pkg/eventlog"
)

func newEvalCommand() *cobra.Command {
	var (
		props   []string
		payload string
	)

	cmd := &cobra.Command{
		Use:   "eval <selector>",
		Short: "Compile a selector and evaluate it against a message",
		Long: `Compile a selector, print its canonical form and evaluate it against a
message built from --prop and --payload. A missing property is NULL, and
a selector that is not TRUE does not select the message.`,
		Example: `  meshbroker-cli eval "value > 20 AND unit = 'C'" --prop value=25 --prop unit=C
  meshbroker-cli eval "PARSER('json', 'reading.value') > 20" --payload '{"reading":{"value":25}}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(cmd, args[0], props, payload)
		},
	}

	cmd.Flags().StringArrayVarP(&props, "prop", "p", nil, "Message property as name=value (repeatable)")
	cmd.Flags().StringVar(&payload, "payload", "", "Message payload")

	return cmd
}

func runEval(cmd *cobra.Command, text string, pairs []string, payload string) error {
	properties, err := parseProperties(pairs)
	if err != nil {
		return err
	}

	sel, err := selector.NewEngine(nil).Compile(text)
	if err != nil {
		return fmt.Errorf("invalid selector: %w", err)
	}
	if sel == nil {
		return fmt.Errorf("invalid selector: empty")
	}

	record := eventlog.NewRecord([]byte(payload), properties)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Canonical: %s\n", sel.String())
	fmt.Fprintf(out, "Selected: %t\n", sel.Evaluate(record))
	return nil
}
