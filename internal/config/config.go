package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Spotify    SpotifyConfig    `yaml:"spotify"`
	Search     SearchConfig     `yaml:"search"`
	Render     RenderConfig     `yaml:"render"`
	Resolver   ResolverConfig   `yaml:"resolver"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EncryptionConfig holds the key protecting stored credentials.
type EncryptionConfig struct {
	Key string `yaml:"key"`
}

// SpotifyConfig holds Spotify client-credentials settings.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SearchConfig holds search-engine adapter settings.
type SearchConfig struct {
	GoogleAPIKey string `yaml:"google_api_key"`
	GoogleCX     string `yaml:"google_cx"`
}

// RenderConfig holds headless-render service settings. RemoteToken selects
// the hosted endpoint; LocalEndpoint is the self-hosted fallback used when
// no token is configured or the hosted service rejects it.
type RenderConfig struct {
	RemoteEndpoint string        `yaml:"remote_endpoint"`
	RemoteToken    string        `yaml:"remote_token"`
	LocalEndpoint  string        `yaml:"local_endpoint"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ResolverConfig holds tuning for the resolution pipeline.
type ResolverConfig struct {
	MaxPageFetches int  `yaml:"max_page_fetches"`
	ProbeDims      bool `yaml:"probe_dimensions"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{Path: "/data/lightstick.db"},
		Render: RenderConfig{
			RemoteEndpoint: "https://production-sfo.browserless.io",
			LocalEndpoint:  "http://localhost:3000",
			Timeout:        45 * time.Second,
		},
		Resolver: ResolverConfig{MaxPageFetches: 3, ProbeDims: true},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("LS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("LS_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("LS_ENCRYPTION_KEY"); v != "" {
		c.Encryption.Key = v
	}
	if v := os.Getenv("LS_SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("LS_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("LS_GOOGLE_API_KEY"); v != "" {
		c.Search.GoogleAPIKey = v
	}
	if v := os.Getenv("LS_GOOGLE_CX"); v != "" {
		c.Search.GoogleCX = v
	}
	if v := os.Getenv("LS_RENDER_TOKEN"); v != "" {
		c.Render.RemoteToken = v
	}
	if v := os.Getenv("LS_RENDER_ENDPOINT"); v != "" {
		c.Render.RemoteEndpoint = v
	}
	if v := os.Getenv("LS_RENDER_LOCAL_ENDPOINT"); v != "" {
		c.Render.LocalEndpoint = v
	}
	if v := os.Getenv("LS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LS_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("LS_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Render.Timeout <= 0 {
		c.Render.Timeout = 45 * time.Second
	}
	if c.Resolver.MaxPageFetches < 1 {
		c.Resolver.MaxPageFetches = 3
	}
	return nil
}
