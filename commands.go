package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/finchinslc/openclaw-board/storage"
	"github.com/finchinslc/openclaw-board/webhook"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and storage resources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd.Context(), loadConfig())
		},
	}
}

func runMigrate(ctx context.Context, cfg config) error {
	store, err := storage.Open(storage.Config{DSN: cfg.databaseURL, SlowThreshold: cfg.slowQuery})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("database schema up to date")

	if cfg.storageConn == "" {
		return nil
	}
	if cfg.archiveTable != "" {
		archive, err := storage.NewTableArchive(cfg.storageConn, cfg.archiveTable)
		if err != nil {
			return fmt.Errorf("archive table: %w", err)
		}
		if err := archive.EnsureTable(ctx); err != nil {
			return fmt.Errorf("ensure table %s: %w", cfg.archiveTable, err)
		}
		log.WithField("table", cfg.archiveTable).Info("archive table ready")
	}
	if cfg.eventsQueue != "" {
		if err := webhook.EnsureQueue(ctx, cfg.storageConn, cfg.eventsQueue); err != nil {
			return fmt.Errorf("ensure queue %s: %w", cfg.eventsQueue, err)
		}
		log.WithField("queue", cfg.eventsQueue).Info("event queue ready")
	}
	return nil
}

func newWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Inspect and exercise webhook delivery",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "send <event> <task-id>",
		Short: "Deliver an event for an existing task to every configured endpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWebhookSend(cmd.Context(), loadConfig(), webhook.Event(args[0]), args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "endpoints",
		Short: "List the configured webhook endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, ep := range webhook.EndpointsFromEnv() {
				events := "all events"
				if len(ep.Events) > 0 {
					events = fmt.Sprint(ep.Events)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tsigned=%t\t%s\n", ep.URL, ep.Secret != "", events)
			}
			return nil
		},
	})
	return cmd
}

func runWebhookSend(ctx context.Context, cfg config, event webhook.Event, taskID string) error {
	if !event.Valid() {
		return fmt.Errorf("unknown event %q", event)
	}
	if len(webhook.EndpointsFromEnv()) == 0 {
		return fmt.Errorf("no webhook endpoints configured")
	}
	store, err := storage.Open(storage.Config{DSN: cfg.databaseURL, SlowThreshold: cfg.slowQuery})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()
	task, err := store.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", taskID, err)
	}

	dispatcher := webhook.NewDispatcher(log.StandardLogger(), webhook.WithTimeout(cfg.webhookTimeout))
	dispatcher.Send(event, task.Summary(), nil)
	dispatcher.Wait()
	log.WithFields(log.Fields{"event": event, "taskId": taskID}).Info("webhook dispatched")
	return nil
}
