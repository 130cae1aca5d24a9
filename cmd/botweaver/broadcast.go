package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/botweaver/botweaver/internal/broadcast"
	"github.com/botweaver/botweaver/pkg/config"
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast <text>",
	Short: "Queue a message for delivery to every user on the ledger",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runBroadcast(strings.Join(args, " ")); err != nil {
			fmt.Printf("Broadcast failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Broadcast queued.")
	},
}

func init() {
	rootCmd.AddCommand(broadcastCmd)
}

func runBroadcast(text string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	enqueuer := broadcast.NewEnqueuer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		_ = enqueuer.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return enqueuer.Enqueue(ctx, text)
}
