package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrMissingJWTSecret is returned by Load when JWT_SECRET is set but blank.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must not be empty")

// Config stores the application configuration.
// Values come from the environment (optionally seeded by a .env file).
type Config struct {
	Port      string `envconfig:"PORT" default:"5050"`
	AppURL    string `envconfig:"APP_URL" default:"http://localhost:5173"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`

	// Database
	DBDriver     string `envconfig:"DB_DRIVER" default:"mysql"` // mysql or sqlite
	DBHost       string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort       string `envconfig:"DB_PORT" default:"3306"`
	DBUser       string `envconfig:"DB_USER" default:"root"`
	DBPassword   string `envconfig:"DB_PASSWORD"`
	DBName       string `envconfig:"DB_NAME" default:"crates"`
	SQLitePath   string `envconfig:"SQLITE_PATH" default:"crates.db"`
	DBLogQueries bool   `envconfig:"DB_LOG_QUERIES" default:"false"`

	// Redis. Empty host disables caching and rate limiting.
	RedisHost     string `envconfig:"REDIS_HOST" default:"127.0.0.1"`
	RedisPort     string `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Discogs
	DiscogsBaseURL        string        `envconfig:"DISCOGS_BASE_URL" default:"https://api.discogs.com"`
	DiscogsConsumerKey    string        `envconfig:"DISCOGS_CONSUMER_KEY"`
	DiscogsConsumerSecret string        `envconfig:"DISCOGS_CONSUMER_SECRET"`
	DiscogsUserAgent      string        `envconfig:"DISCOGS_USER_AGENT" default:"CratesApp/1.0"`
	DiscogsCacheTTL       time.Duration `envconfig:"DISCOGS_CACHE_TTL" default:"10m"`

	// Spotify
	SpotifyClientID     string        `envconfig:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string        `envconfig:"SPOTIFY_CLIENT_SECRET"`
	SpotifyRedirectURI  string        `envconfig:"SPOTIFY_REDIRECT_URI" default:"http://localhost:5173/spotify-callback"`
	SpotifyAPIBaseURL   string        `envconfig:"SPOTIFY_API_BASE_URL" default:"https://api.spotify.com/v1/"`
	SpotifyAuthURL      string        `envconfig:"SPOTIFY_AUTH_URL" default:"https://accounts.spotify.com/authorize"`
	SpotifyTokenURL     string        `envconfig:"SPOTIFY_TOKEN_URL" default:"https://accounts.spotify.com/api/token"`
	EnrichTrackDelay    time.Duration `envconfig:"ENRICH_TRACK_DELAY" default:"100ms"`

	// Email (SMTP). Empty host logs links instead of sending.
	EmailHost string `envconfig:"EMAIL_HOST"`
	EmailPort int    `envconfig:"EMAIL_PORT" default:"587"`
	EmailUser string `envconfig:"EMAIL_USER"`
	EmailPass string `envconfig:"EMAIL_PASS"`

	// MinIO cover archive
	MinioEnabled   bool   `envconfig:"MINIO_ENABLED" default:"false"`
	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:"127.0.0.1:9000"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioBucket    string `envconfig:"MINIO_BUCKET" default:"crates"`
	MinioRegion    string `envconfig:"MINIO_REGION" default:"us-east-1"`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`

	// Thumbnails are only downloaded over https from these hosts.
	CoverHosts []string `envconfig:"COVER_HOSTS" default:"i.discogs.com,img.discogs.com"`

	// Rate limits on the public auth endpoints
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"15m"`
	RegisterRateLimit int           `envconfig:"REGISTER_RATE_LIMIT" default:"5"`
	LoginRateLimit    int           `envconfig:"LOGIN_RATE_LIMIT" default:"10"`

	// Logging
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogOutputPath string `envconfig:"LOG_OUTPUT_PATH"`
	LogMaxSize    int    `envconfig:"LOG_MAX_SIZE" default:"100"`
	LogMaxBackups int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	LogMaxAge     int    `envconfig:"LOG_MAX_AGE" default:"30"`
	LogCompress   bool   `envconfig:"LOG_COMPRESS" default:"true"`
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() (*Config, error) {
	// godotenv.Load() will not override existing env vars.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, ErrMissingJWTSecret
	}
	return &cfg, nil
}

// RedisAddr returns host:port, or "" when Redis is disabled.
func (c *Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// EmailFrom is the sender header used for outgoing mail.
func (c *Config) EmailFrom() string {
	return fmt.Sprintf("\"Crates Music Collection\" <%s>", c.EmailUser)
}
