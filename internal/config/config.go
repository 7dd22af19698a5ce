// Package config loads bountyd's runtime configuration from environment
// variables, with an optional static YAML file providing defaults,
// following services/lending/config.go's LoadConfigFromEnv/Validate/
// Sanitized shape.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bountyvault/core/internal/observability/logging"
)

const (
	envListenAddress     = "BOUNTYD_LISTEN_ADDR"
	envAdminPrincipals   = "BOUNTYD_ADMIN_PRINCIPALS"
	envFeeRecipient      = "BOUNTYD_FEE_RECIPIENT"
	envJWTSecret         = "BOUNTYD_JWT_SECRET"
	envJWTIssuer         = "BOUNTYD_JWT_ISSUER"
	envJWTAudience       = "BOUNTYD_JWT_AUDIENCE"
	envRateLimitPerMin   = "BOUNTYD_RATE_LIMIT_PER_MIN"
	envSQLitePath        = "BOUNTYD_SQLITE_PATH"
	envLogFile           = "BOUNTYD_LOG_FILE"
	envEnvironment       = "BOUNTYD_ENV"
	envSweepIntervalSecs = "BOUNTYD_SWEEP_INTERVAL_SECONDS"
	envTickIntervalSecs  = "BOUNTYD_TICK_INTERVAL_SECONDS"
)

// Config is bountyd's fully resolved runtime configuration.
type Config struct {
	ListenAddress   string        `yaml:"listenAddress"`
	AdminPrincipals []string      `yaml:"adminPrincipals"`
	FeeRecipient    string        `yaml:"feeRecipient"`
	JWTSecret       string        `yaml:"jwtSecret"`
	JWTIssuer       string        `yaml:"jwtIssuer"`
	JWTAudience     string        `yaml:"jwtAudience"`
	RateLimitPerMin int           `yaml:"rateLimitPerMin"`
	SQLitePath      string        `yaml:"sqlitePath"`
	LogFile         string        `yaml:"logFile"`
	Environment     string        `yaml:"environment"`
	SweepInterval   time.Duration `yaml:"-"`
	TickInterval    time.Duration `yaml:"-"`
}

// LoadFile reads a static YAML configuration file; its values are used as
// defaults and overridden by environment variables in LoadConfigFromEnv.
func LoadFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigFromEnv starts from base (typically the result of LoadFile, or
// the zero value) and overrides every field present in the environment.
func LoadConfigFromEnv(base Config) Config {
	cfg := base
	cfg.ListenAddress = stringFromEnv(envListenAddress, cfg.ListenAddress)
	if raw := strings.TrimSpace(os.Getenv(envAdminPrincipals)); raw != "" {
		cfg.AdminPrincipals = splitAndTrim(raw)
	}
	cfg.FeeRecipient = stringFromEnv(envFeeRecipient, cfg.FeeRecipient)
	cfg.JWTSecret = stringFromEnv(envJWTSecret, cfg.JWTSecret)
	cfg.JWTIssuer = stringFromEnv(envJWTIssuer, cfg.JWTIssuer)
	cfg.JWTAudience = stringFromEnv(envJWTAudience, cfg.JWTAudience)
	cfg.RateLimitPerMin = intFromEnv(envRateLimitPerMin, cfg.RateLimitPerMin)
	cfg.SQLitePath = stringFromEnv(envSQLitePath, cfg.SQLitePath)
	cfg.LogFile = stringFromEnv(envLogFile, cfg.LogFile)
	cfg.Environment = stringFromEnv(envEnvironment, cfg.Environment)

	sweepSecs := intFromEnv(envSweepIntervalSecs, 0)
	if sweepSecs > 0 {
		cfg.SweepInterval = time.Duration(sweepSecs) * time.Second
	} else if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	tickSecs := intFromEnv(envTickIntervalSecs, 0)
	if tickSecs > 0 {
		cfg.TickInterval = time.Duration(tickSecs) * time.Second
	} else if cfg.TickInterval == 0 {
		cfg.TickInterval = 60 * time.Second
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	if cfg.RateLimitPerMin == 0 {
		cfg.RateLimitPerMin = 120
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "bountyd.db"
	}
	return cfg
}

// Validate checks that mandatory fields are present and well-formed.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: %s must not be empty", envListenAddress)
	}
	if len(c.AdminPrincipals) == 0 {
		return fmt.Errorf("config: %s must name at least one admin", envAdminPrincipals)
	}
	if strings.TrimSpace(c.FeeRecipient) == "" {
		return fmt.Errorf("config: %s must not be empty", envFeeRecipient)
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("config: %s must not be empty", envJWTSecret)
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("config: %s must be positive", envRateLimitPerMin)
	}
	return nil
}

// Sanitized returns a copy with secrets masked, safe to log or dump.
func (c Config) Sanitized() Config {
	out := c
	out.JWTSecret = logging.MaskValue(c.JWTSecret)
	return out
}

func stringFromEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(v)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func intFromEnv(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
