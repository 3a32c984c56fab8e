package app

import (
	"errors"
	"fmt"
	"time"

	"wishsync/cmd/internal/dbmigrate"
	"wishsync/cmd/internal/owner"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // json | text | pretty

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBSchema    string

	// AutoMigrate applies pending migrations before serving.
	AutoMigrate bool

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// RedisURL enables cross-instance signal relay when set.
	RedisURL     string
	RelayChannel string

	// JWTSecret verifies owner bearer tokens. Empty disables owner routes.
	JWTSecret string
	JWTIssuer string

	StrictFunding bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	WSAllowedOrigins     []string
	WSOriginRequired     bool
	WSRequireSubprotocol bool
	WSSendQueueSize      int
	WSWriteTimeout       time.Duration
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("WISHSYNC_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("WISHSYNC_LOG_LEVEL", "info"),
		LogFormat: EnvString("WISHSYNC_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("WISHSYNC_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("WISHSYNC_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("WISHSYNC_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("WISHSYNC_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("WISHSYNC_HTTP_MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:   int64(EnvInt("WISHSYNC_HTTP_MAX_BODY_BYTES", 1<<20)),

		DatabaseURL: EnvString("WISHSYNC_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("WISHSYNC_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("WISHSYNC_DB_MIN_CONNS", 0),
		DBSchema:    EnvString("WISHSYNC_DB_SCHEMA", "wishsync"),
		AutoMigrate: EnvBool("WISHSYNC_AUTO_MIGRATE", false),

		ReadinessRequireDB: EnvBool("WISHSYNC_READINESS_REQUIRE_DB", false),

		RedisURL:     EnvString("WISHSYNC_REDIS_URL", ""),
		RelayChannel: EnvString("WISHSYNC_RELAY_CHANNEL", "wishsync:signals"),

		JWTSecret: EnvString("WISHSYNC_JWT_SECRET", ""),
		JWTIssuer: EnvString("WISHSYNC_JWT_ISSUER", ""),

		StrictFunding: EnvBool("WISHSYNC_STRICT_FUNDING", false),

		CORSAllowedOrigins:   EnvCSV("WISHSYNC_CORS_ALLOWED_ORIGINS", nil),
		CORSAllowCredentials: EnvBool("WISHSYNC_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("WISHSYNC_CORS_MAX_AGE_SECONDS", 600),

		WSAllowedOrigins:     EnvCSV("WISHSYNC_WS_ALLOWED_ORIGINS", []string{"http://localhost", "http://127.0.0.1"}),
		WSOriginRequired:     EnvBool("WISHSYNC_WS_ORIGIN_REQUIRED", true),
		WSRequireSubprotocol: EnvBool("WISHSYNC_WS_REQUIRE_SUBPROTOCOL", false),
		WSSendQueueSize:      EnvInt("WISHSYNC_WS_SEND_QUEUE", 32),
		WSWriteTimeout:       EnvDuration("WISHSYNC_WS_WRITE_TIMEOUT", 5*time.Second),
	}
}

// Validate fails fast on settings that would otherwise surface as odd runtime behavior.
func (c Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: WISHSYNC_HTTP_ADDR is empty")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < owner.MinSecretBytes {
		return fmt.Errorf("config: WISHSYNC_JWT_SECRET is too short (min %d bytes)", owner.MinSecretBytes)
	}
	if c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns {
		return errors.New("config: WISHSYNC_DB_MIN_CONNS exceeds WISHSYNC_DB_MAX_CONNS")
	}
	if c.ReadinessRequireDB && c.DatabaseURL == "" {
		return errors.New("config: WISHSYNC_READINESS_REQUIRE_DB=true but WISHSYNC_DATABASE_URL is empty")
	}
	if c.AutoMigrate && c.DatabaseURL == "" {
		return errors.New("config: WISHSYNC_AUTO_MIGRATE=true but WISHSYNC_DATABASE_URL is empty")
	}
	if c.AutoMigrate && c.DBSchema != dbmigrate.DefaultSchema {
		return fmt.Errorf("config: WISHSYNC_AUTO_MIGRATE only manages schema %q", dbmigrate.DefaultSchema)
	}
	switch c.LogFormat {
	case "json", "text", "pretty":
	default:
		return fmt.Errorf("config: unknown WISHSYNC_LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}
