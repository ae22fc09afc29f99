package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"crates/cache"
	"crates/config"
	"crates/core/auth"
	"crates/core/collection"
	"crates/core/discogs"
	"crates/core/enrich"
	"crates/core/mail"
	"crates/core/spotify"
	"crates/db"
	"crates/logger"
	"crates/repository"
	"crates/server"
	"crates/storage"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Crates API server",
	Long:  `Start the HTTP API: auth, collections, the Discogs and Spotify proxies and the cover archive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	gdb, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gdb)
	if err := db.AutoMigrate(gdb); err != nil {
		return err
	}

	redisClient, err := cache.ConnectRedis(cfg)
	if err != nil {
		return err
	}
	if redisClient == nil {
		logger.Warn("Redis disabled, responses are not cached and auth endpoints are not rate limited")
	} else {
		defer redisClient.Close()
		logger.Info("Connected to Redis", logger.String("addr", cfg.RedisAddr()))
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}

	discogsClient := discogs.NewClient(cfg, httpClient,
		cache.NewResponseCache(redisClient, "discogs", cfg.DiscogsCacheTTL))

	spotifyCfg := spotify.ConfigFrom(cfg)
	spotifySvc := spotify.NewService(spotifyCfg, spotify.NewClientCredentialsCache(spotifyCfg), httpClient)
	enricher := enrich.NewEnricher(spotifySvc, cfg.EnrichTrackDelay)

	covers, err := coverStore(cfg)
	if err != nil {
		return err
	}
	var archiver collection.CoverArchiver
	if covers != nil {
		archiver = covers
	}

	authSvc := auth.NewService(repository.NewUserRepository(gdb), auth.NewTokenIssuer(cfg.JWTSecret), mail.New(cfg))
	collections := collection.NewService(repository.NewCollectionRepository(gdb), discogsClient, enricher, archiver)

	router := server.NewRouter(server.Deps{
		Auth:            authSvc,
		Collections:     collections,
		Discogs:         discogsClient,
		Spotify:         spotifySvc,
		Enricher:        enricher,
		Covers:          covers,
		RegisterLimiter: cache.NewRateLimiter(redisClient, "register", cfg.RegisterRateLimit, cfg.RateLimitWindow),
		LoginLimiter:    cache.NewRateLimiter(redisClient, "login", cfg.LoginRateLimit, cfg.RateLimitWindow),
	})
	return server.Start(ctx, cfg, router)
}

// coverStore returns nil when the archive is disabled.
func coverStore(cfg *config.Config) (*storage.CoverStore, error) {
	if !cfg.MinioEnabled {
		return nil, nil
	}
	client, err := storage.NewMinioClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("cover archive: %w", err)
	}
	return storage.NewCoverStore(client, cfg.MinioBucket, cfg.CoverHosts), nil
}
