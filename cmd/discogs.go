package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crates/core/discogs"

	"github.com/spf13/cobra"
)

var (
	discogsType    string
	discogsPerPage int
)

var discogsCmd = &cobra.Command{
	Use:   "discogs",
	Short: "Query the Discogs API from the command line",
}

var discogsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the Discogs database",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		client := discogs.NewClient(cfg, nil, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		query := strings.Join(args, " ")
		params := url.Values{}
		params.Set("type", discogsType)
		params.Set("per_page", strconv.Itoa(discogsPerPage))

		fmt.Printf("Searching: %s\n", query)
		body, err := client.Search(ctx, query, params)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		var res struct {
			Results []struct {
				ID    int64  `json:"id"`
				Title string `json:"title"`
				Year  string `json:"year"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &res); err != nil {
			return fmt.Errorf("decode search results: %w", err)
		}
		if len(res.Results) == 0 {
			fmt.Println("No results.")
			return nil
		}
		for i, r := range res.Results {
			fmt.Printf("%d. [%d] %s (%s)\n", i+1, r.ID, r.Title, r.Year)
		}
		return nil
	},
}

var discogsReleaseCmd = &cobra.Command{
	Use:   "release <id>",
	Short: "Show a release as it would be added to a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid release id %q", args[0])
		}
		cfg, err := setup()
		if err != nil {
			return err
		}
		client := discogs.NewClient(cfg, nil, nil)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		rel, err := client.ReleaseDetails(ctx, id)
		if err != nil {
			return err
		}
		album := rel.ToAlbum()
		fmt.Printf("%s - %s (%s)\n", album.Artist, album.Title, album.Year)
		if album.Label != "" {
			fmt.Printf("Label: %s %s\n", album.Label, album.CatNo)
		}
		for _, t := range album.Tracks {
			fmt.Printf("  %-4s %s %s\n", t.Position, t.Title, t.Duration)
		}
		return nil
	},
}

func init() {
	discogsSearchCmd.Flags().StringVarP(&discogsType, "type", "t", "release", "result type: release, master, artist or label")
	discogsSearchCmd.Flags().IntVarP(&discogsPerPage, "limit", "l", 10, "number of results")
	discogsCmd.AddCommand(discogsSearchCmd, discogsReleaseCmd)
	rootCmd.AddCommand(discogsCmd)
}
