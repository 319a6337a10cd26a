package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor methods.
//
// Example (~/.quantfolio/config.yaml):
//
// server:
//   host: 127.0.0.1
//   port: 8090
// database:
//   path: ~/.quantfolio/quantfolio.db
// model:
//   provider: openai
//   base_url: https://api.openai.com/v1
//   api_key: sk-...
//   model: gpt-4o-mini
// upstream:
//   portfolio_url: http://127.0.0.1:9301
//   market_url: http://127.0.0.1:9302
//   orders_url: http://127.0.0.1:9303
// redis:
//   addr: 127.0.0.1:6379
//
// Notes:
// - If the config file does not exist, Load returns defaults without error.
// - If the config file exists but cannot be parsed, Load returns an error.
// - Port must be between 1 and 65535.

type AppConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Model    ModelConfig    `yaml:"model"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Redis    RedisConfig    `yaml:"redis"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type DatabaseConfig struct {
	Path *string `yaml:"path"`
}

// ModelConfig selects the language model provider used by the agent.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Region   string `yaml:"region"` // ark only
}

// UpstreamConfig holds base URLs of the portfolio engine, the symbol lookup
// service, and the order ledger.
type UpstreamConfig struct {
	PortfolioURL string `yaml:"portfolio_url"`
	MarketURL    string `yaml:"market_url"`
	OrdersURL    string `yaml:"orders_url"`
}

// RedisConfig configures the optional symbol-lookup cache.
// An empty addr disables caching.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8090
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".quantfolio")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.quantfolio/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	// Validate
	host := cfg.Host()
	if strings.TrimSpace(host) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}

	port := cfg.Port()
	if port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)}}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions; the file may hold API keys.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil {
		return DefaultHost
	}
	if c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if c == nil {
		return DefaultPort
	}
	if c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

// Default upstream base URLs match the local dev ports of the portfolio
// engine, the symbol lookup service and the order ledger.
const (
	DefaultPortfolioURL = "http://127.0.0.1:9301"
	DefaultMarketURL    = "http://127.0.0.1:9302"
	DefaultOrdersURL    = "http://127.0.0.1:9303"
)

func (c *AppConfig) PortfolioURL() string {
	if c != nil && strings.TrimSpace(c.Upstream.PortfolioURL) != "" {
		return c.Upstream.PortfolioURL
	}
	return DefaultPortfolioURL
}

func (c *AppConfig) MarketURL() string {
	if c != nil && strings.TrimSpace(c.Upstream.MarketURL) != "" {
		return c.Upstream.MarketURL
	}
	return DefaultMarketURL
}

func (c *AppConfig) OrdersURL() string {
	if c != nil && strings.TrimSpace(c.Upstream.OrdersURL) != "" {
		return c.Upstream.OrdersURL
	}
	return DefaultOrdersURL
}

// DatabasePath returns the sqlite file path, defaulting to
// ~/.quantfolio/quantfolio.db.
func (c *AppConfig) DatabasePath() string {
	if c != nil && c.Database.Path != nil && strings.TrimSpace(*c.Database.Path) != "" {
		return *c.Database.Path
	}
	configDir, _, err := DefaultPaths()
	if err != nil {
		return "quantfolio.db"
	}
	return filepath.Join(configDir, "quantfolio.db")
}

func ptr[T any](v T) *T { return &v }
