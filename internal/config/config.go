// Package config assembles the service configuration from environment
// variables. Every setting has a default that works for local development;
// Load validates the result so a bad value stops the process at boot
// instead of surfacing as a misbehaving server later.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is everything tunable at startup.
type Config struct {
	// HTTP server.
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration // grace period for in-flight requests
	MaxHeaderBytes    int
	GinMode           string // debug, release or test

	// Logging and docs.
	LogLevel       string // debug, info, warn, error, fatal, panic
	LogPretty      bool   // console writer for development
	SwaggerEnabled bool   // serve the Swagger UI
	APIBasePath    string // mount point for the versioned API

	// Task storage.
	DBPath         string // SQLite file path
	TaskNameMaxLen int    // task name cap in runes

	// Rate limiting.
	RateRPS   float64
	RateBurst int

	// Web protection.
	CORS     CORSConfig
	Security SecurityConfig

	// Tracing.
	OTEL OTELConfig
}

// CORSConfig lists the origins allowed to call the API from a browser.
// Empty means allow all.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls the Strict-Transport-Security response header.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures the OpenTelemetry trace exporter.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the OTLP gRPC collector
	Insecure    bool   // plaintext transport, for a local collector
	ServiceName string
	SampleRatio float64 // fraction of root traces sampled, in [0,1]
}

// Load reads the environment, applies defaults and normalization, and
// validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              envString("PORT", "8080"),
		ReadTimeout:       envDuration("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: envDuration("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      envDuration("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       envDuration("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    envInt("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(envString("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(envString("LOG_LEVEL", "info")),
		LogPretty:      envBool("LOG_PRETTY", false),
		SwaggerEnabled: envBool("SWAGGER_ENABLED", false),
		APIBasePath:    cleanBasePath(envString("API_BASE_PATH", "/api/v1")),

		DBPath:         envString("DB_PATH", "app.db"),
		TaskNameMaxLen: envInt("TASK_NAME_MAX_LEN", 80),

		RateRPS:   envFloat("RATE_RPS", 5.0),
		RateBurst: envInt("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: csvList(envString("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: envBool("ENABLE_HSTS", false),
			HSTSMaxAge: envDuration("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     envBool("OTEL_ENABLED", false),
			Endpoint:    envString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: envString("OTEL_SERVICE_NAME", "go-task-backend"),
			SampleRatio: envFloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// MustLoad is Load for callers that cannot continue without configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// normalize maps values with a well-known equivalent onto it instead of
// rejecting them.
func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if c.TaskNameMaxLen < 1 {
		return errors.New("TASK_NAME_MAX_LEN must be >= 1")
	}
	if c.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if c.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if c.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// Env helpers. A variable that is unset, empty, or fails to parse yields
// the default; configuration typos should never flip a setting to zero.

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// csvList splits a comma-separated value, dropping blanks.
func csvList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cleanBasePath collapses p to a single leading slash with no trailing
// ones, so route registration never sees "//" or a dangling slash.
func cleanBasePath(p string) string {
	return "/" + strings.Trim(strings.TrimSpace(p), "/")
}
