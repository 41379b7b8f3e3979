// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	TLS       TLSConfig
	Session   SessionConfig
	SMTP      SMTPConfig
	OTP       OTPConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Geocoder  GeocoderConfig
	Storage   StorageConfig
	Admin     AdminConfig
	Telemetry TelemetryConfig
}

type TLSConfig struct {
	Mode     string // auto, selfsigned, manual, off
	CertDir  string // Directory for auto-generated certificates
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// SMTPConfig configures the outgoing mail relay. An empty Host disables
// delivery and mails are written to the log instead.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// OTPConfig controls the voter verification codes.
type OTPConfig struct {
	TTL         time.Duration
	MaxRequests int
	Store       string // database, redis
}

type RedisConfig struct {
	URL string
}

// KafkaConfig configures the vote event stream. No brokers means events are
// only delivered to the in-process live feed.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

type GeocoderConfig struct { //nolint:govet // fieldalignment not critical
	URL       string // empty disables geocoding
	UserAgent string
	Timeout   time.Duration
}

// StorageConfig selects the object store. Without a bucket, objects are
// written below Dir and served from /uploads.
type StorageConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	PublicURL string
	Dir       string
}

type AdminConfig struct {
	Username string
	Password string
}

type TelemetryConfig struct {
	Endpoint    string // OTLP/HTTP endpoint, empty disables tracing
	ServiceName string
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		OTP: OTPConfig{
			TTL:         cmd.Duration("otp-ttl"),
			MaxRequests: int(cmd.Int("otp-max-requests")),
			Store:       strings.ToLower(cmd.String("otp-store")),
		},
		Redis: RedisConfig{
			URL: cmd.String("redis-url"),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(cmd.String("kafka-brokers")),
			Topic:   cmd.String("kafka-topic"),
			GroupID: cmd.String("kafka-group-id"),
		},
		Geocoder: GeocoderConfig{
			URL:       cmd.String("geocoder-url"),
			UserAgent: cmd.String("geocoder-user-agent"),
			Timeout:   cmd.Duration("geocoder-timeout"),
		},
		Storage: StorageConfig{
			Bucket:    cmd.String("storage-bucket"),
			Region:    cmd.String("storage-region"),
			Endpoint:  cmd.String("storage-endpoint"),
			PublicURL: cmd.String("storage-public-url"),
			Dir:       cmd.String("storage-dir"),
		},
		Admin: AdminConfig{
			Username: cmd.String("admin-username"),
			Password: cmd.String("admin-password"),
		},
		Telemetry: TelemetryConfig{
			Endpoint:    cmd.String("otel-endpoint"),
			ServiceName: cmd.String("otel-service-name"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.OTP.Store {
	case "database", "":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("otp store redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown otp store: %s", c.OTP.Store)
	}
	if c.OTP.MaxRequests < 1 {
		return fmt.Errorf("otp max requests must be at least 1")
	}
	if c.OTP.TTL <= 0 {
		return fmt.Errorf("otp ttl must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}
	return nil
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "http"
	if shouldUseTLS(strings.ToLower(cfg.TLS.Mode), host) {
		scheme = "https"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "selfsigned", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   5,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/ballot.db",
			Usage:   "Database DSN",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, selfsigned, manual, off)",
			Sources: source("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for auto-generated certificates",
			Sources: source("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: source("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: source("TLS_KEY_FILE", "tls.key_file"),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_ballot",
			Usage:   "Session cookie name",
			Sources: source("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   86400, // 1 day in seconds
			Usage:   "Session max age in seconds",
			Sources: source("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: source("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: source("SESSION_BLOCK_KEY", "session.block_key"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host (empty logs mails instead of sending them)",
			Sources: source("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: source("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Value:   "noreply@localhost",
			Usage:   "Sender address",
			Sources: source("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Ballot",
			Usage:   "Sender display name",
			Sources: source("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: source("SMTP_TLS", "smtp.tls"),
		},
		// OTP flags
		&cli.DurationFlag{
			Name:    "otp-ttl",
			Value:   5 * time.Minute,
			Usage:   "Validity window of a verification code",
			Sources: source("OTP_TTL", "otp.ttl"),
		},
		&cli.IntFlag{
			Name:    "otp-max-requests",
			Value:   3,
			Usage:   "Verification codes a session may request",
			Sources: source("OTP_MAX_REQUESTS", "otp.max_requests"),
		},
		&cli.StringFlag{
			Name:    "otp-store",
			Value:   "database",
			Usage:   "Verification session store (database, redis)",
			Sources: source("OTP_STORE", "otp.store"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL (redis:// or rediss://)",
			Sources: source("REDIS_URL", "redis.url"),
		},
		// Kafka flags
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma-separated Kafka brokers",
			Sources: source("KAFKA_BROKERS", "kafka.brokers"),
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Value:   "election-votes-stream",
			Usage:   "Topic vote events are published to",
			Sources: source("KAFKA_TOPIC", "kafka.topic"),
		},
		&cli.StringFlag{
			Name:    "kafka-group-id",
			Value:   "ballot-archiver",
			Usage:   "Consumer group of the vote archiver",
			Sources: source("KAFKA_GROUP_ID", "kafka.group_id"),
		},
		// Geocoder flags
		&cli.StringFlag{
			Name:    "geocoder-url",
			Usage:   "Nominatim search endpoint (empty disables geocoding)",
			Sources: source("GEOCODER_URL", "geocoder.url"),
		},
		&cli.StringFlag{
			Name:    "geocoder-user-agent",
			Value:   "ballot",
			Usage:   "User-Agent sent to the geocoder",
			Sources: source("GEOCODER_USER_AGENT", "geocoder.user_agent"),
		},
		&cli.DurationFlag{
			Name:    "geocoder-timeout",
			Value:   3 * time.Second,
			Usage:   "Timeout of a single geocoding attempt",
			Sources: source("GEOCODER_TIMEOUT", "geocoder.timeout"),
		},
		// Storage flags
		&cli.StringFlag{
			Name:    "storage-bucket",
			Usage:   "S3 bucket (empty stores objects on disk)",
			Sources: source("STORAGE_BUCKET", "storage.bucket"),
		},
		&cli.StringFlag{
			Name:    "storage-region",
			Value:   "eu-central-1",
			Usage:   "S3 region",
			Sources: source("STORAGE_REGION", "storage.region"),
		},
		&cli.StringFlag{
			Name:    "storage-endpoint",
			Usage:   "S3 endpoint override (e.g. MinIO)",
			Sources: source("STORAGE_ENDPOINT", "storage.endpoint"),
		},
		&cli.StringFlag{
			Name:    "storage-public-url",
			Usage:   "Public base URL of stored objects",
			Sources: source("STORAGE_PUBLIC_URL", "storage.public_url"),
		},
		&cli.StringFlag{
			Name:    "storage-dir",
			Value:   "./data/uploads",
			Usage:   "Directory for objects when no bucket is configured",
			Sources: source("STORAGE_DIR", "storage.dir"),
		},
		// Admin flags
		&cli.StringFlag{
			Name:    "admin-username",
			Value:   "admin",
			Usage:   "Administrator username",
			Sources: source("ADMIN_USERNAME", "admin.username"),
		},
		&cli.StringFlag{
			Name:    "admin-password",
			Usage:   "Administrator password (empty disables the admin panel)",
			Sources: source("ADMIN_PASSWORD", "admin.password"),
		},
		// Telemetry flags
		&cli.StringFlag{
			Name:    "otel-endpoint",
			Usage:   "OTLP/HTTP trace endpoint (empty disables tracing)",
			Sources: source("OTEL_ENDPOINT", "telemetry.endpoint"),
		},
		&cli.StringFlag{
			Name:    "otel-service-name",
			Value:   "ballot",
			Usage:   "Service name reported with traces",
			Sources: source("OTEL_SERVICE_NAME", "telemetry.service_name"),
		},
	}
}
