/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/eventmgr/apiserver/config"
	"github.com/eventmgr/apiserver/internal/mq"
	"github.com/eventmgr/apiserver/internal/notify"
	"github.com/eventmgr/apiserver/internal/server"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume password-reset notifications from the broker",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		broker, err := server.NewBroker(cmd.Context(), cfg.MQ)
		if err != nil {
			return fmt.Errorf("connect broker: %w", err)
		}
		if broker == nil {
			return errors.New("no notification broker configured")
		}
		defer func() {
			_ = broker.Close()
		}()

		consumer := notify.NewConsumer(mq.New(broker), cfg.Notify.Channel, log)
		log.Info("worker started", "channel", cfg.Notify.Channel)
		return consumer.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
