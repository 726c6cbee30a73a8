package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shinyyama/directchat/internal/config"
	"github.com/shinyyama/directchat/internal/db"
	"github.com/shinyyama/directchat/internal/logging"
	"github.com/shinyyama/directchat/internal/media"
	appmw "github.com/shinyyama/directchat/internal/middleware"
	"github.com/shinyyama/directchat/internal/server"
)

var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("development", "info")
		bootLogger.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verifier, err := newVerifier(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init auth")
	}

	opts := server.Options{
		Logger:         logger,
		Verifier:       verifier,
		SendRateLimit:  cfg.SendRateLimit,
		AllowedOrigins: cfg.AllowedOrigins,
		BodyLimit:      cfg.BodyLimit,
		SHA:            gitSHA,
		BuildTime:      buildTime,
	}

	if cfg.StorageBucket != "" {
		uploader, err := media.NewGCSUploader(ctx, cfg.StorageBucket, cfg.CredentialsFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init storage")
		}
		defer uploader.Close()
		opts.Uploader = uploader
	} else {
		logger.Warn().Msg("STORAGE_BUCKET not set; image and video messages are disabled")
	}

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		opts.Limiter = appmw.NewRedisLimiter(rdb)
	}

	// Serve immediately; the store is attached once reachable.
	srv := server.New(nil, opts)
	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("git_sha", gitSHA).Msg("starting server")
		errCh <- srv.Start(addr)
	}()

	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			logger.Error().Err(err).Msg("db connect error")
			return
		}
		if err := db.Migrate(conn); err != nil {
			logger.Error().Err(err).Msg("auto migrate error")
			return
		}
		srv.SetDB(conn)
		logger.Info().Str("driver", cfg.DBDriver).Msg("database ready")
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
	}
}

func newVerifier(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (appmw.Verifier, error) {
	if cfg.FirebaseProjectID != "" {
		return appmw.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID)
	}
	logger.Info().Msg("FIREBASE_PROJECT_ID not set; verifying HS256 tokens")
	return appmw.NewJWTVerifier(cfg.JWTSecret), nil
}
