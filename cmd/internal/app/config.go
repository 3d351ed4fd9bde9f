package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Browser origins allowed to call the API. Empty means same-origin only
	// (no CORS headers emitted). Entries may use a port wildcard, e.g.
	// "http://127.0.0.1:*".
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	// First-run bootstrap: when the user table is empty, an admin account is
	// created with these credentials.
	AdminUsername string
	AdminPassword string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("AGORA_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("AGORA_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("AGORA_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("AGORA_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("AGORA_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("AGORA_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("AGORA_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("AGORA_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("AGORA_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("AGORA_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("AGORA_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvStrings("AGORA_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("AGORA_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("AGORA_CORS_MAX_AGE_SECONDS", 600),

		AdminUsername: EnvString("AGORA_ADMIN_USERNAME", "admin"),
		AdminPassword: EnvString("AGORA_ADMIN_PASSWORD", ""),
	}
}
