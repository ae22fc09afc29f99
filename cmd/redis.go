package cmd

import (
	"context"
	"fmt"
	"time"

	"crates/cache"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis connection",
	Long:  `Connect to Redis and round-trip a key to confirm reads and writes work.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		fmt.Printf("Redis: %s, DB: %d\n", cfg.RedisAddr(), cfg.RedisDB)

		client, err := cache.ConnectRedis(cfg)
		if err != nil {
			return err
		}
		if client == nil {
			return fmt.Errorf("Redis is disabled (REDIS_HOST is empty)")
		}
		defer client.Close()
		fmt.Println("Connected.")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cache.SelfCheck(ctx, client); err != nil {
			return err
		}
		fmt.Println("Read/write check passed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
