package main

import (
	"testing"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/profiles"
)

var configKeys = []string{
	"SERVICE_NAME", "PORT", "GRPC_PORT", "DATABASE_URL", "DB_MAX_CONNS", "AUTO_MIGRATE",
	"JWT_SECRET", "JWKS_URL", "JWT_ISSUER", "JWT_AUDIENCE",
	"CLINIC_TIMEZONE", "SCHEDULE_TEMPLATE", "SCHEDULE_BLOCKS", "SCHEDULE_STEP_MINUTES",
	"SESSION_DURATIONS_MINUTES", "BOOKING_HORIZON_DAYS",
	"KAFKA_BROKERS", "KAFKA_GROUP_ID", "KAFKA_PROFILE_TOPIC",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "RATE_LIMIT_PREFIX", "JWKS_CACHE_TTL", "RATE_LIMIT_PER_MINUTE", "RATE_LIMIT_FAIL_OPEN", "CORS_ALLOWED_ORIGINS",
	"HTTP_REQUEST_TIMEOUT", "HTTP_BODY_LIMIT_BYTES", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
	config.Reset()
	t.Cleanup(config.Reset)
}

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
	config.Reset()
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{"JWT_SECRET": "s"})

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoadConfigRequiresTokenVerification(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{"DATABASE_URL": "postgres://localhost/clinic"})

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error without JWT_SECRET or JWKS_URL")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/clinic",
		"JWT_SECRET":   "s",
	})

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "clinic-service" || cfg.HTTPPort != "8080" || cfg.GRPCPort != "9090" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ProfileTopic != profiles.TopicProfileUpserted || cfg.KafkaGroupID != "clinic-service" {
		t.Fatalf("unexpected kafka defaults: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 0 || cfg.RedisAddr != "" {
		t.Fatalf("expected optional dependencies to be off: %+v", cfg)
	}
	if cfg.JWKSCacheTTL != 10*time.Minute || cfg.RateLimitPrefix != "rl" || cfg.RedisDB != 0 {
		t.Fatalf("unexpected jwks/redis defaults: %+v", cfg)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Fatalf("expected 15s request timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.Booking.Location != time.UTC || cfg.Booking.HorizonDays != 7 {
		t.Fatalf("unexpected booking defaults: %+v", cfg.Booking)
	}
	if len(cfg.Booking.Template) != 16 {
		t.Fatalf("expected default 16-slot day, got %d", len(cfg.Booking.Template))
	}
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"DATABASE_URL": "postgres://localhost/clinic",
		"JWT_SECRET":   "s",
		"PORT":         "http",
	})

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestLoadBookingConfigTemplateWinsOverBlocks(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"SCHEDULE_TEMPLATE": "10:00,11:00",
		"SCHEDULE_BLOCKS":   "09:00-12:00",
	})

	cfg, err := loadBookingConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := cfg.Template.String(); got != "10:00,11:00" {
		t.Fatalf("expected explicit template, got %s", got)
	}
}

func TestLoadBookingConfigFromBlocks(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"SCHEDULE_BLOCKS":           "09:00-12:00",
		"SCHEDULE_STEP_MINUTES":     "60",
		"SESSION_DURATIONS_MINUTES": "45, 60",
		"BOOKING_HORIZON_DAYS":      "14",
		"CLINIC_TIMEZONE":           "Asia/Kolkata",
	})

	cfg, err := loadBookingConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := availability.Template{9 * 60, 10 * 60, 11 * 60}
	if cfg.Template.String() != want.String() {
		t.Fatalf("expected %s, got %s", want, cfg.Template)
	}
	if len(cfg.Durations) != 2 || cfg.Durations[0] != 45 || cfg.Durations[1] != 60 {
		t.Fatalf("unexpected durations %v", cfg.Durations)
	}
	if cfg.HorizonDays != 14 {
		t.Fatalf("expected horizon 14, got %d", cfg.HorizonDays)
	}
	if cfg.Location.String() != "Asia/Kolkata" {
		t.Fatalf("expected Asia/Kolkata, got %s", cfg.Location)
	}
}

func TestLoadBookingConfigErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"timezone":  {"CLINIC_TIMEZONE": "Mars/Olympus"},
		"template":  {"SCHEDULE_TEMPLATE": "9am"},
		"unordered": {"SCHEDULE_TEMPLATE": "14:00,09:00"},
		"blocks":    {"SCHEDULE_BLOCKS": "12:00-09:00"},
		"step":      {"SCHEDULE_BLOCKS": "09:00-12:00", "SCHEDULE_STEP_MINUTES": "0"},
		"durations": {"SESSION_DURATIONS_MINUTES": "60,soon"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			setEnv(t, env)
			if _, err := loadBookingConfig(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfigParsesBrokerList(t *testing.T) {
	clearEnv(t)
	setEnv(t, map[string]string{
		"DATABASE_URL":  "postgres://localhost/clinic",
		"JWT_SECRET":    "s",
		"KAFKA_BROKERS": " kafka-1:9092, ,kafka-2:9092 ",
		"REDIS_ADDR":    "redis:6379",
		"REDIS_DB":      "2",
	})

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "kafka-1:9092" || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers %q", cfg.KafkaBrokers)
	}
	if cfg.RedisAddr != "redis:6379" || cfg.RedisDB != 2 {
		t.Fatalf("unexpected redis config: %+v", cfg)
	}
}
