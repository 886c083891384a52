package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vantutran2k1/elements/internal/element"
	"github.com/vantutran2k1/elements/internal/events"
	"github.com/vantutran2k1/elements/pkg/filter"
)

func newWatchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print element change events, optionally forwarding them to a webhook",
		Long: `watch subscribes to the change events published by elements-api.
Created and updated events are filtered by --q; deleted events carry no
element and are always shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd, v)
		},
	}

	cmd.Flags().String("nats", "", "NATS server URL (env ELEMENTS_NATS_URL)")
	cmd.Flags().String("subject", events.DefaultSubjectPrefix, "event subject prefix")
	cmd.Flags().String("q", "", "only show events whose element matches this query")
	cmd.Flags().String("webhook", "", "POST every shown event to this URL")
	cmd.Flags().Int("workers", 4, "number of delivery workers")
	_ = v.BindPFlag("nats.url", cmd.Flags().Lookup("nats"))
	_ = v.BindPFlag("nats.subject", cmd.Flags().Lookup("subject"))
	_ = v.BindPFlag("watch.q", cmd.Flags().Lookup("q"))
	_ = v.BindPFlag("watch.webhook", cmd.Flags().Lookup("webhook"))
	_ = v.BindPFlag("watch.workers", cmd.Flags().Lookup("workers"))

	return cmd
}

func watch(ctx context.Context, cmd *cobra.Command, v *viper.Viper) error {
	url := v.GetString("nats.url")
	if url == "" {
		return errors.New("a NATS url is required (--nats or ELEMENTS_NATS_URL)")
	}

	d, err := newWatchDispatcher(cmd, v)
	if err != nil {
		return err
	}

	nc, err := nats.Connect(url, nats.Name("elementsctl"))
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	defer nc.Close()

	d.Start()
	defer d.Stop()

	slog.Info("watching element events", "url", url, "subject", events.Wildcard(v.GetString("nats.subject")))
	return events.Subscribe(ctx, nc, v.GetString("nats.subject"), d)
}

func newWatchDispatcher(cmd *cobra.Command, v *viper.Viper) (*events.Dispatcher, error) {
	f, err := filter.CompileString(filter.NewCompiler(element.Catalog), v.GetString("watch.q"))
	if err != nil {
		return nil, fmt.Errorf("invalid --q: %w", err)
	}

	notifiers := []events.Notifier{events.NewWriterNotifier(cmd.OutOrStdout())}
	if hook := v.GetString("watch.webhook"); hook != "" {
		notifiers = append(notifiers, events.NewWebhookNotifier(hook))
	}

	return events.NewDispatcher(v.GetInt("watch.workers"), 64, events.MatchFilter(f), notifiers...), nil
}
