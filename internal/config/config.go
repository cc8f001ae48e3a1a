package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds every runtime setting of the service. Values come from the
// environment, optionally seeded from a .env file next to the binary.
type Config struct {
	Database struct {
		URL string `env:"DATABASE_URL"`
	}
	ResultCache struct {
		Addr     string        `env:"RESULT_CACHE_ADDR"`
		Password string        `env:"RESULT_CACHE_PASSWORD"`
		DB       int           `env:"RESULT_CACHE_DB" envDefault:"0"`
		TTL      time.Duration `env:"RESULT_CACHE_TTL" envDefault:"30s"`
	}
	Server struct {
		Addr          string        `env:"LISTEN_ADDR" envDefault:":8080"`
		APIKey        string        `env:"API_KEY"`
		AllowedOrigin string        `env:"ALLOWED_ORIGIN" envDefault:"*"`
		ReadTimeout   time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
		WriteTimeout  time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	}
	Sheet struct {
		Path          string        `env:"CUSTOMER_SHEET_PATH"`
		WatchDebounce time.Duration `env:"SHEET_WATCH_DEBOUNCE" envDefault:"2s"`
	}
	Matching struct {
		LockWindowDays  int           `env:"LOCK_WINDOW_DAYS" envDefault:"30"`
		RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"5m"`
	}

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// LockWindow returns the recency lock window as a duration.
func (c Config) LockWindow() time.Duration {
	return time.Duration(c.Matching.LockWindowDays) * 24 * time.Hour
}

// Load reads the configuration from the environment. A missing .env file is
// fine; a malformed environment is not.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.WithError(err).Debug("no .env file loaded")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
		log.Warn("DEBUG MODE ENABLED")
	}

	return cfg, nil
}
