/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/infectwatch/apiserver/config"
	"github.com/infectwatch/apiserver/internal/logging"
	"github.com/infectwatch/apiserver/internal/mq"
	"github.com/infectwatch/apiserver/types"
	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect login events on the message queue",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Log every login event published on LOGIN_EVENTS_CHANNEL",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log, os.Stdout)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("open mq: %w", err)
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is none, nothing to watch")
		}
		defer queue.Close()

		logger.Info("watching login events", "channel", cfg.MQ.LoginChannel, "backend", cfg.MQ.Backend)
		events := mq.NewLoginEvents(queue, cfg.MQ.LoginChannel)
		err = events.Consume(ctx, func(ctx context.Context, event types.LoginEvent) error {
			logger.InfoContext(ctx, "login",
				"session_id", event.SessionID,
				"email", event.Email,
				"ip", event.IP,
				"login_time", event.LoginTime)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsWatchCmd)
}
