/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/soikot-shahriaar/server-maintenance-cms/internal/logging"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/mq"
	"github.com/soikot-shahriaar/server-maintenance-cms/internal/services"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect maintenance log events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print log events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("events are disabled, set MQ_BACKEND to rabbitmq or pubsub")
		}
		defer queue.Close()

		log.Info(ctx, "tailing log events", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)
		err = queue.Subscribe(ctx, cfg.MQ.Channel, printEvent(cmd.OutOrStdout(), log))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}

// printEvent writes one line per event. Undecodable messages are logged and
// acknowledged.
func printEvent(w io.Writer, log logging.Logger) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		event, err := services.DecodeLogEvent(msg)
		if err != nil {
			log.Warn(ctx, "skipping undecodable event", "id", msg.ID, "err", err)
			return nil
		}
		_, err = fmt.Fprintf(w, "%s %-11s log=%d server=%q status=%s actor=%d\n",
			event.At.Format(time.RFC3339), event.Type, event.LogID, event.ServerName, event.Status, event.ActorID)
		return err
	}
}
