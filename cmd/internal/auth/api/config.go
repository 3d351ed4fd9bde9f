package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxBodyBytes = int64(64 << 10)
	defaultCookieName   = "token"
	defaultTokenTTL     = 7 * 24 * time.Hour
)

// Config holds the auth API settings.
type Config struct {
	// TokenSecret signs session tokens. Required, min 32 bytes.
	TokenSecret string
	TokenTTL    time.Duration

	CookieName   string
	CookieSecure bool

	MaxBodyBytes int64
}

// LoadConfig reads AGORA_AUTH_* environment variables.
func LoadConfig() Config {
	cfg := Config{
		TokenSecret:  strings.TrimSpace(os.Getenv("AGORA_AUTH_TOKEN_SECRET")),
		TokenTTL:     envDuration("AGORA_AUTH_TOKEN_TTL", defaultTokenTTL),
		CookieName:   envString("AGORA_AUTH_COOKIE_NAME", defaultCookieName),
		CookieSecure: envBool("AGORA_AUTH_COOKIE_SECURE", false),
		MaxBodyBytes: envInt64("AGORA_AUTH_MAX_BODY_BYTES", defaultMaxBodyBytes),
	}
	return cfg
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
