package web

import "time"

// Config contains the HTTP server settings.
type Config struct {
	Addr          string
	APIKey        string
	AllowedOrigin string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// DefaultConfig returns settings for local development: no API key, any
// origin.
func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		AllowedOrigin: "*",
		ReadTimeout:   10 * time.Second,
		WriteTimeout:  15 * time.Second,
	}
}
