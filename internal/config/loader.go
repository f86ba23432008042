package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage drivers accepted in DATABASE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config captures environment driven configuration values for the SalaFácil service.
type Config struct {
	Port               int           `env:"PORT" envDefault:"8080"`
	DatabaseDriver     string        `env:"DATABASE_DRIVER" envDefault:"postgres"`
	DatabaseURL        string        `env:"DATABASE_URL"`
	JWTSecret          string        `env:"JWT_SECRET"`
	NeonAPIKey         string        `env:"NEON_API_KEY"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	AcceptLegacyTokens bool          `env:"AUTH_ACCEPT_LEGACY_TOKENS" envDefault:"false"`
	DemoFallback       bool          `env:"AUTH_DEMO_FALLBACK" envDefault:"false"`
	ExposeErrorDetails bool          `env:"EXPOSE_ERROR_DETAILS" envDefault:"false"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleTokenInfoURL string        `env:"GOOGLE_TOKENINFO_URL" envDefault:"https://oauth2.googleapis.com/tokeninfo"`
	StatusSweep        time.Duration `env:"STATUS_SWEEP_INTERVAL" envDefault:"60s"`
	StatusStartWindow  time.Duration `env:"STATUS_START_WINDOW" envDefault:"5m"`
	TouchingConflicts  bool          `env:"BOOKING_TOUCHING_CONFLICTS" envDefault:"true"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat          string        `env:"LOG_FORMAT" envDefault:"json"`
	CORSAllowedOrigin  string        `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`

	Redis     RedisConfig     `envPrefix:"REDIS_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
	AMQP      AMQPConfig      `envPrefix:"AMQP_"`
}

// RedisConfig locates the Redis instance backing the rate limiter. An empty
// Addr disables Redis.
type RedisConfig struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// RateLimitConfig tunes the token bucket applied to the authentication routes.
type RateLimitConfig struct {
	Enabled        bool          `env:"ENABLED" envDefault:"true"`
	Capacity       int           `env:"CAPACITY" envDefault:"20"`
	RefillTokens   int           `env:"REFILL_TOKENS" envDefault:"1"`
	RefillInterval time.Duration `env:"REFILL_INTERVAL" envDefault:"3s"`
	TTL            time.Duration `env:"TTL" envDefault:"10m"`
	Prefix         string        `env:"PREFIX" envDefault:"rl"`
}

// AMQPConfig locates the broker reservation events go to. An empty URL
// disables publishing.
type AMQPConfig struct {
	URL   string `env:"URL"`
	Queue string `env:"QUEUE" envDefault:"reservation.events"`
}

// Load reads an optional .env file and then parses the process environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("falha ao ler .env: %w", err)
	}
	return Parse(nil)
}

// Parse builds a Config from environment. A nil map reads the process environment.
func Parse(environment map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: environment})
	if err != nil {
		return Config{}, fmt.Errorf("variáveis de ambiente com valor inválido: %w", err)
	}

	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 4)

	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	switch cfg.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case DriverMemory:
	default:
		invalid = append(invalid, "DATABASE_DRIVER")
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		invalid = append(invalid, "PORT")
	}
	if cfg.AccessTokenTTL <= 0 {
		invalid = append(invalid, "ACCESS_TOKEN_TTL")
	}
	if cfg.RefreshTokenTTL <= 0 {
		invalid = append(invalid, "REFRESH_TOKEN_TTL")
	}
	if cfg.StatusSweep <= 0 {
		invalid = append(invalid, "STATUS_SWEEP_INTERVAL")
	}
	if cfg.StatusStartWindow <= 0 {
		invalid = append(invalid, "STATUS_START_WINDOW")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "LOG_LEVEL")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		invalid = append(invalid, "LOG_FORMAT")
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Capacity <= 0 {
			invalid = append(invalid, "RATE_LIMIT_CAPACITY")
		}
		if cfg.RateLimit.RefillTokens <= 0 {
			invalid = append(invalid, "RATE_LIMIT_REFILL_TOKENS")
		}
		if cfg.RateLimit.RefillInterval <= 0 {
			invalid = append(invalid, "RATE_LIMIT_REFILL_INTERVAL")
		}
		if cfg.RateLimit.TTL < time.Second {
			invalid = append(invalid, "RATE_LIMIT_TTL")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("variáveis de ambiente obrigatórias ausentes: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("variáveis de ambiente com valor inválido: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

// HasNeonAPIKey reports whether the Neon provisioning key was supplied.
func (c Config) HasNeonAPIKey() bool {
	return strings.TrimSpace(c.NeonAPIKey) != ""
}
