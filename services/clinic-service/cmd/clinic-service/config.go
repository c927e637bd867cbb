package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/profiles"
)

type serviceConfig struct {
	Name     string
	LogLevel string
	HTTPPort string
	GRPCPort string

	DatabaseURL string
	DBMaxConns  int
	AutoMigrate bool

	JWTSecret    string
	JWKSURL      string
	JWKSCacheTTL time.Duration
	JWTIssuer    string
	JWTAudience  string

	Booking booking.Config

	KafkaBrokers []string
	KafkaGroupID string
	ProfileTopic string

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RateLimitPerMinute int
	RateLimitFailOpen  bool
	RateLimitPrefix    string
	CORSOrigins        []string
	RequestTimeout     time.Duration
	BodyLimitBytes     int64
}

func loadConfig() (serviceConfig, error) {
	httpPort, err := config.Port("PORT", "8080")
	if err != nil {
		return serviceConfig{}, err
	}
	grpcPort, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		return serviceConfig{}, err
	}
	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return serviceConfig{}, err
	}
	bookingCfg, err := loadBookingConfig()
	if err != nil {
		return serviceConfig{}, err
	}

	cfg := serviceConfig{
		Name:               config.String("SERVICE_NAME", "clinic-service"),
		LogLevel:           config.String("LOG_LEVEL", "info"),
		HTTPPort:           httpPort,
		GRPCPort:           grpcPort,
		DatabaseURL:        dbURL,
		DBMaxConns:         config.Int("DB_MAX_CONNS", 10),
		AutoMigrate:        config.Bool("AUTO_MIGRATE", false),
		JWTSecret:          config.String("JWT_SECRET", ""),
		JWKSURL:            config.String("JWKS_URL", ""),
		JWKSCacheTTL:       config.Duration("JWKS_CACHE_TTL", 10*time.Minute),
		JWTIssuer:          config.String("JWT_ISSUER", ""),
		JWTAudience:        config.String("JWT_AUDIENCE", ""),
		Booking:            bookingCfg,
		KafkaBrokers:       kafkax.SplitBrokers(config.String("KAFKA_BROKERS", "")),
		KafkaGroupID:       config.String("KAFKA_GROUP_ID", "clinic-service"),
		ProfileTopic:       config.String("KAFKA_PROFILE_TOPIC", profiles.TopicProfileUpserted),
		RedisAddr:          config.String("REDIS_ADDR", ""),
		RedisPassword:      config.String("REDIS_PASSWORD", ""),
		RedisDB:            config.Int("REDIS_DB", 0),
		RateLimitPerMinute: config.Int("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitFailOpen:  config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		RateLimitPrefix:    config.String("RATE_LIMIT_PREFIX", "rl"),
		CORSOrigins:        config.StringSlice("CORS_ALLOWED_ORIGINS", nil),
		RequestTimeout:     config.Duration("HTTP_REQUEST_TIMEOUT", 15*time.Second),
		BodyLimitBytes:     int64(config.Int("HTTP_BODY_LIMIT_BYTES", 1<<20)),
	}
	if cfg.JWTSecret == "" && cfg.JWKSURL == "" {
		return serviceConfig{}, fmt.Errorf("one of JWT_SECRET or JWKS_URL is required")
	}
	return cfg, nil
}

// loadBookingConfig builds the clinic calendar. SCHEDULE_TEMPLATE lists start times
// explicitly and wins over SCHEDULE_BLOCKS, which enumerates them every
// SCHEDULE_STEP_MINUTES inside working periods.
func loadBookingConfig() (booking.Config, error) {
	cfg := booking.DefaultConfig()

	loc, err := time.LoadLocation(config.String("CLINIC_TIMEZONE", "UTC"))
	if err != nil {
		return booking.Config{}, fmt.Errorf("CLINIC_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if raw := config.String("SCHEDULE_TEMPLATE", ""); raw != "" {
		tmpl, err := availability.ParseTemplate(raw)
		if err != nil {
			return booking.Config{}, fmt.Errorf("SCHEDULE_TEMPLATE: %w", err)
		}
		cfg.Template = tmpl
	} else if raw := config.String("SCHEDULE_BLOCKS", ""); raw != "" {
		blocks, err := availability.ParseBlocks(raw)
		if err != nil {
			return booking.Config{}, fmt.Errorf("SCHEDULE_BLOCKS: %w", err)
		}
		step := time.Duration(config.Int("SCHEDULE_STEP_MINUTES", 30)) * time.Minute
		tmpl, err := availability.TemplateFromBlocks(blocks, step)
		if err != nil {
			return booking.Config{}, fmt.Errorf("SCHEDULE_BLOCKS: %w", err)
		}
		cfg.Template = tmpl
	}

	if raw := config.StringSlice("SESSION_DURATIONS_MINUTES", nil); len(raw) > 0 {
		durations := make([]int, 0, len(raw))
		for _, part := range raw {
			mins, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || mins <= 0 {
				return booking.Config{}, fmt.Errorf("SESSION_DURATIONS_MINUTES: invalid value %q", part)
			}
			durations = append(durations, mins)
		}
		cfg.Durations = durations
	}

	cfg.HorizonDays = config.Int("BOOKING_HORIZON_DAYS", cfg.HorizonDays)
	return cfg, nil
}
