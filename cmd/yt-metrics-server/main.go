package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/yt-metrics-client/pkg/client"
	"github.com/Sternrassler/yt-metrics-client/pkg/logging"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Google OAuth2 endpoints.
var googleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

func main() {
	// A missing .env is fine; the environment wins over the file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to load .env")
	}

	logger := logging.Setup(logging.ConfigFromEnv("yt-metrics-server"))

	// Configuration from environment
	redisAddr := getEnv("REDIS_URL", "localhost:6379")
	port := getEnv("PORT", "8080")
	userAgent := getEnv("USER_AGENT", "yt-metrics-client/0.1.0")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: getEnv("REDIS_PASSWORD", ""),
	})
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("redis", redisAddr).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis", redisAddr).Msg("Connected to Redis")

	cfg := client.DefaultConfig(redisClient, userAgent)
	cfg.APIKey = getEnv("YOUTUBE_API_KEY", "")
	cfg.TokenSource = tokenSource(ctx)
	cfg.Principal = getEnv("YOUTUBE_PRINCIPAL", "")
	cfg.DailyQuota = getEnvInt64("YOUTUBE_DAILY_QUOTA", cfg.DailyQuota)
	cfg.QuotaThreshold = getEnvInt64("YOUTUBE_QUOTA_THRESHOLD", cfg.QuotaThreshold)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", cfg.CacheTTL)
	cfg.CacheStaleWindow = getEnvDuration("CACHE_STALE_WINDOW", cfg.CacheStaleWindow)

	ytClient, err := client.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create YouTube client")
	}

	srv := &server{
		yt:               ytClient,
		redis:            redisClient,
		defaultChannel:   getEnv("YOUTUBE_CHANNEL_ID", ""),
		monetizationDays: int(getEnvInt64("MONETIZATION_DAYS", 28)),
		timeout:          getEnvDuration("REPORT_TIMEOUT", 2*time.Minute),
		logger:           logging.NewLogger("http"),
		now:              time.Now,
	}

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	logger.Info().
		Str("addr", httpServer.Addr).
		Str("user_agent", userAgent).
		Bool("oauth", cfg.TokenSource != nil).
		Msg("Starting YouTube metrics server")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server stopped")
}

// tokenSource builds OAuth2 credentials from the environment. A refresh
// token with client credentials is preferred over a bare access token,
// which cannot be renewed. Returns nil when neither is configured.
func tokenSource(ctx context.Context) oauth2.TokenSource {
	if refresh := getEnv("YOUTUBE_REFRESH_TOKEN", ""); refresh != "" {
		conf := &oauth2.Config{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			Endpoint:     googleEndpoint,
		}
		return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh})
	}
	if access := getEnv("YOUTUBE_ACCESS_TOKEN", ""); access != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: access, TokenType: "Bearer"})
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer, using default")
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid duration, using default")
		return defaultValue
	}
	return d
}
