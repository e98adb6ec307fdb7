package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rmacdonaldsmith/meshbroker/internal/broker"
	"github.com/rmacdonaldsmith/meshbroker/pkg/eventlog"
	"github.com/rmacdonaldsmith/meshbroker/pkg/routingtable"
)

func newRouteCommand() *cobra.Command {
	var (
		subs     []string
		props    []string
		payload  string
		priority int
		count    int
	)

	cmd := &cobra.Command{
		Use:   "route <topic>",
		Short: "Publish through an in-process broker and show who receives it",
		Long: `Start an in-process broker, subscribe one consumer per --sub, publish
--count messages to topic and show which subscriptions received each.

A subscription is a filter, optionally followed by ";" and a selector.
Filters of the form "$share/<name>/<filter>" join a shared group; each
--sub is a separate member, so members of one group compete for messages.`,
		Example: `  meshbroker-cli route sensor/room1/temp --prop value=25 \
    --sub 'sensor/+/temp' --sub 'sensor/#;value > 30' \
    --sub '$share/g/sensor/#' --sub '$share/g/sensor/#'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd, args[0], subs, props, payload, priority, count)
		},
	}

	cmd.Flags().StringArrayVarP(&subs, "sub", "s", nil, "Subscription as filter[;selector] (repeatable)")
	cmd.Flags().StringArrayVarP(&props, "prop", "p", nil, "Message property as name=value (repeatable)")
	cmd.Flags().StringVar(&payload, "payload", "", "Message payload")
	cmd.Flags().IntVar(&priority, "priority", eventlog.DefaultPriority, "Message priority, 0 to 9")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of messages to publish")
	_ = cmd.MarkFlagRequired("sub")

	return cmd
}

type routeSubscription struct {
	def      string
	consumer *broker.ChannelConsumer
}

func runRoute(cmd *cobra.Command, topic string, subs, pairs []string, payload string, priority, count int) error {
	properties, err := parseProperties(pairs)
	if err != nil {
		return err
	}
	if count < 1 {
		return fmt.Errorf("count must be positive")
	}

	b, err := broker.New(broker.NewConfig("meshbroker-cli"), broker.WithLogger(quietLogger(cmd)))
	if err != nil {
		return err
	}
	defer b.Close()

	ctx := context.Background()
	if err := b.Start(ctx); err != nil {
		return err
	}

	subscriptions := make([]routeSubscription, 0, len(subs))
	for i, def := range subs {
		filter, sel, _ := strings.Cut(def, ";")
		sctx := routingtable.NewSubscriptionContext(strings.TrimSpace(filter))
		if sel = strings.TrimSpace(sel); sel != "" {
			sctx = sctx.WithSelector(sel)
		}

		consumer := broker.NewRecordingConsumer(fmt.Sprintf("sub-%d", i+1), count)
		if _, err := b.Subscribe(ctx, consumer, sctx); err != nil {
			return fmt.Errorf("subscription %q: %w", def, err)
		}
		subscriptions = append(subscriptions, routeSubscription{def: def, consumer: consumer})
	}

	out := cmd.OutOrStdout()
	for range count {
		record := eventlog.NewRecord([]byte(payload), properties).WithPriority(priority)
		res, err := b.Publish(ctx, topic, record)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "published id=%d offset=%d routed=%d filtered=%d\n",
			res.ID, res.Offset, res.Routed, res.Filtered)
	}

	for i, s := range subscriptions {
		fmt.Fprintf(out, "sub-%d\t%s\treceived=%v\n", i+1, s.def, s.consumer.ReceivedIDs())
	}
	return nil
}

// quietLogger logs errors only, to the command's stderr.
func quietLogger(cmd *cobra.Command) *slog.Logger {
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelError}))
}
