package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"crates/storage"

	"github.com/spf13/cobra"
)

var coversPrefix string

var coversCmd = &cobra.Command{
	Use:   "covers",
	Short: "Show cover archive statistics",
	Long:  `Connect to MinIO and summarise the archived album covers, per user.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		fmt.Printf("MinIO: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		client, err := storage.NewMinioClient(cfg)
		if err != nil {
			return err
		}
		store := storage.NewCoverStore(client, cfg.MinioBucket, cfg.CoverHosts)

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		stats, err := store.Stats(ctx, coversPrefix)
		if err != nil {
			return err
		}

		fmt.Printf("\nObjects: %d\nTotal size: %.2f MB\n", stats.Objects, float64(stats.TotalSize)/(1<<20))
		users := make([]string, 0, len(stats.Users))
		for u := range stats.Users {
			users = append(users, u)
		}
		sort.Strings(users)
		for _, u := range users {
			fmt.Printf("  user %s: %d covers\n", u, stats.Users[u])
		}
		return nil
	},
}

func init() {
	coversCmd.Flags().StringVarP(&coversPrefix, "prefix", "p", "covers/", "object key prefix")
	rootCmd.AddCommand(coversCmd)
}
