// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the full server configuration, decoded from environment
// variables. Defaults suit local development.
type Config struct {
	Server struct {
		Addr            string        `env:"SERVER_ADDR,default=:8080"`
		ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
		WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=15m"`
		ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	}

	Auth struct {
		PublicKeyPEM string `env:"AUTH_PUBLIC_KEY_PEM"`
		SkipPaths    string `env:"AUTH_SKIP_PATHS,default=/healthz;/metrics"`
	}

	RateLimit struct {
		RequestsPerSecond int `env:"RATE_LIMIT_RPS,default=10"`
		Burst             int `env:"RATE_LIMIT_BURST,default=20"`
	}

	CORS struct {
		AllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=*"`
	}

	Postgres struct {
		DSN string `env:"DATABASE_URL"`
	}

	AuditLogPath string `env:"AUDIT_LOG_PATH"`
	LogLevel     string `env:"LOG_LEVEL,default=info"`
}

// Load decodes configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// AuthSkipPaths returns the semicolon-separated skip list as a slice.
func (c Config) AuthSkipPaths() []string {
	return splitList(c.Auth.SkipPaths)
}

// CORSOrigins returns the semicolon-separated origin list as a slice.
func (c Config) CORSOrigins() []string {
	return splitList(c.CORS.AllowedOrigins)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ";") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
