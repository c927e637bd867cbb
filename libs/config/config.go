package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	mu sync.RWMutex
	v  = newViper()
)

func newViper() *viper.Viper {
	vp := viper.New()
	vp.AutomaticEnv()
	return vp
}

// LoadFile merges an optional config file (yaml, json, toml or .env) underneath
// the environment. Environment variables always win. An empty path is a no-op.
func LoadFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

// Reset drops any loaded file and re-reads the environment. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	v = newViper()
}

func raw(key string) string {
	mu.RLock()
	defer mu.RUnlock()
	return strings.TrimSpace(v.GetString(key))
}

func String(key, fallback string) string {
	val := raw(key)
	if val == "" {
		return fallback
	}
	return val
}

func RequiredString(key string) (string, error) {
	val := raw(key)
	if val == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return val, nil
}

func Port(key, fallback string) (string, error) {
	val := String(key, fallback)
	p, err := strconv.Atoi(val)
	if err != nil || p < 1 || p > 65535 {
		return "", fmt.Errorf("%s must be a valid TCP port (got %q)", key, val)
	}
	return val, nil
}

func Int(key string, fallback int) int {
	val := raw(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func Bool(key string, fallback bool) bool {
	switch strings.ToLower(raw(key)) {
	case "":
		return fallback
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

// Duration accepts Go duration strings ("90s", "5m"). Plain integers are read as seconds.
func Duration(key string, fallback time.Duration) time.Duration {
	val := raw(key)
	if val == "" {
		return fallback
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}

// StringSlice splits a comma separated value, dropping empty entries.
func StringSlice(key string, fallback []string) []string {
	val := raw(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
