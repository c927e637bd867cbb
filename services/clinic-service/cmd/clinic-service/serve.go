package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/catalog"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/consumer"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/dashboard"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/feedback"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/handlers"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/notifications"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/profiles"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/storage"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/migrations"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the gRPC health server and the event workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg serviceConfig) error {
	logger := runtime.NewLoggerWithLevel(cfg.Name, cfg.LogLevel)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(cfg.Name))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	pool, err := db.OpenWithOptions(ctx, cfg.DatabaseURL, db.Options{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		return err
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		applied, err := db.NewMigrator(pool, migrations.FS, ".").Up(ctx)
		if err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		logger.Info("migrations applied", "count", applied)
	}

	verifier, err := newVerifier(cfg)
	if err != nil {
		return err
	}

	store := storage.New(pool)
	bookingSvc, err := booking.NewService(store, cfg.Booking, logger)
	if err != nil {
		return err
	}
	api := handlers.New(handlers.Services{
		Booking:       bookingSvc,
		Catalog:       catalog.NewService(store),
		Notifications: notifications.NewService(store),
		Feedback:      feedback.NewService(store),
		Dashboard:     dashboard.NewService(store, cfg.Booking.Location),
	}, logger)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var writer outbox.MessageWriter
	if len(cfg.KafkaBrokers) > 0 {
		writer = kafkax.NewWriter(cfg.KafkaBrokers)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.KafkaBrokers)})

		reader := kafkax.NewReader(kafkax.ReaderConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.KafkaGroupID,
			Topic:   cfg.ProfileTopic,
		})
		profileConsumer := consumer.New(logger, reader, profiles.NewHandler(store, logger), consumer.Config{
			Attempts: 3,
			Backoff:  time.Second,
		})
		go profileConsumer.Run(ctx)
		logger.Info("profile consumer started", "topic", cfg.ProfileTopic, "group_id", cfg.KafkaGroupID)
	} else {
		logger.Warn("KAFKA_BROKERS not set; outbox events stay queued and profile sync is disabled")
	}
	publisher := outbox.NewPublisher(outbox.NewRepository(pool), writer, logger, outbox.PublisherConfig{
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	rateLimit, closeLimiter, check := newRateLimit(cfg, logger)
	defer closeLimiter()
	if check != nil {
		checks = append(checks, *check)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	api.Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRecover(logger),
		httpx.WithCORS(httpx.CORSPolicy{AllowedOrigins: cfg.CORSOrigins}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(cfg.BodyLimitBytes),
		httpx.WithTimeout(cfg.RequestTimeout),
		rateLimit,
		auth.Authenticate(verifier),
	)
	handler = otelhttp.NewHandler(handler, cfg.Name)

	if err := startGrpcServer(ctx, logger, cfg.GRPCPort, pool); err != nil {
		return fmt.Errorf("grpc server: %w", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("http server error", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}

func newVerifier(cfg serviceConfig) (*auth.Verifier, error) {
	vcfg := auth.VerifierConfig{
		HMACSecret: cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	}
	if cfg.JWKSURL != "" {
		vcfg.JWKS = auth.NewJWKSClient(cfg.JWKSURL, cfg.JWKSCacheTTL)
	}
	return auth.NewVerifier(vcfg)
}

// newRateLimit counts in Redis when REDIS_ADDR is set, in process memory otherwise.
func newRateLimit(cfg serviceConfig, logger *slog.Logger) (httpx.Middleware, func(), *runtime.ReadyCheck) {
	if cfg.RateLimitPerMinute <= 0 {
		logger.Info("rate limiting disabled")
		return nil, func() {}, nil
	}
	if cfg.RedisAddr == "" {
		logger.Info("rate limiting enabled (in-memory)", "per_minute", cfg.RateLimitPerMinute)
		rl := httpx.NewMemoryRateLimiter(cfg.RateLimitPerMinute, time.Minute)
		return httpx.WithRateLimit(rl, logger, cfg.RateLimitFailOpen), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	rl := httpx.NewRedisRateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, cfg.RateLimitPrefix)
	logger.Info("rate limiting enabled (redis)", "per_minute", cfg.RateLimitPerMinute, "redis_addr", cfg.RedisAddr)
	check := &runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	}}
	return httpx.WithRateLimit(rl, logger, cfg.RateLimitFailOpen), func() { _ = rdb.Close() }, check
}
