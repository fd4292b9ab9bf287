package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the environment variable holding the config file path.
const ConfigPathEnv = "POE_ROUTER_CONFIG"

const defaultConfigFile = "config.yaml"

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Poe    PoeConfig    `yaml:"poe"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port         int             `yaml:"port"`
	MaxBodyBytes int64           `yaml:"max_body_bytes"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig enables the per-client rate limiter when RequestsPerSecond > 0.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// PoeConfig describes the bot backend.
type PoeConfig struct {
	BaseURL            string            `yaml:"base_url"`
	DefaultModel       string            `yaml:"default_model"`
	DefaultTemperature float64           `yaml:"default_temperature"`
	AllowUnlistedBots  bool              `yaml:"allow_unlisted_bots"`
	ProxyURL           string            `yaml:"proxy_url"`
	ConnectTimeout     time.Duration     `yaml:"connect_timeout"`
	Headers            Headers           `yaml:"headers"`
	Bots               []BotConfig       `yaml:"bots"`
	Aliases            map[string]string `yaml:"aliases"`
}

// Headers contains additional HTTP headers to send with every bot query.
type Headers map[string]string

// BotConfig exposes a Poe bot under a model ID.
type BotConfig struct {
	ID  string `yaml:"id"`
	Bot string `yaml:"bot"`
}

// BotName returns the Poe bot name, falling back to the model ID.
func (b BotConfig) BotName() string {
	if strings.TrimSpace(b.Bot) == "" {
		return b.ID
	}
	return b.Bot
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file overrides a value.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:         9881,
			MaxBodyBytes: 4 << 20,
		},
		Poe: PoeConfig{
			BaseURL:            "https://api.poe.com/bot/",
			DefaultModel:       "GPT-3.5-Turbo",
			DefaultTemperature: 0.7,
			AllowUnlistedBots:  true,
			ConnectTimeout:     10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path, and
// environment overrides, then validates the result. An empty path falls back
// to $POE_ROUTER_CONFIG and then ./config.yaml; a missing default file is not
// an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = os.Getenv(ConfigPathEnv)
		explicit = path != ""
	}
	if path == "" {
		path = defaultConfigFile
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, key := range []string{"PORT", "LISTEN_PORT"} {
		if v, ok := lookup(key); ok && v != "" {
			port, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s must be an integer, got %q", key, v)
			}
			c.Server.Port = port
		}
	}
	if v, ok := lookup("BASE_URL"); ok && v != "" {
		c.Poe.BaseURL = v
	}
	for _, key := range []string{"BOT", "DEFAULT_MODEL"} {
		if v, ok := lookup(key); ok && v != "" {
			c.Poe.DefaultModel = v
		}
	}
	if v, ok := lookup("GOST_PROXY"); ok && v != "" {
		c.Poe.ProxyURL = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	return nil
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.Server.RateLimit.RequestsPerSecond < 0 || c.Server.RateLimit.Burst < 0 {
		return errors.New("server.rate_limit values must not be negative")
	}

	if err := c.Poe.validate(); err != nil {
		return err
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q must be one of text, json", c.Log.Format)
	}
	return nil
}

func (p PoeConfig) validate() error {
	if err := validateHTTPURL("poe.base_url", p.BaseURL); err != nil {
		return err
	}
	if p.ProxyURL != "" {
		if err := validateHTTPURL("poe.proxy_url", p.ProxyURL); err != nil {
			return err
		}
	}
	if math.IsNaN(p.DefaultTemperature) || math.IsInf(p.DefaultTemperature, 0) {
		return errors.New("poe.default_temperature must be a finite number")
	}
	if p.ConnectTimeout < 0 {
		return errors.New("poe.connect_timeout must not be negative")
	}

	known := make(map[string]struct{}, len(p.Bots))
	for _, bot := range p.Bots {
		if strings.TrimSpace(bot.ID) == "" {
			return errors.New("poe: bot id must not be empty")
		}
		if _, dup := known[bot.ID]; dup {
			return fmt.Errorf("poe: bot id %q configured twice", bot.ID)
		}
		known[bot.ID] = struct{}{}
	}

	for headerKey := range p.Headers {
		if !isCanonicalHTTPHeader(headerKey) {
			return fmt.Errorf("poe: header %q is not a valid canonical HTTP header", headerKey)
		}
	}

	for alias, target := range p.Aliases {
		if strings.TrimSpace(alias) == "" {
			return errors.New("poe: alias name must not be empty")
		}
		if _, ok := known[target]; !ok {
			return fmt.Errorf("poe: alias %q references unknown bot %q", alias, target)
		}
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) URL, got %q", field, raw)
	}
	return nil
}

func isCanonicalHTTPHeader(header string) bool {
	if header == "" {
		return false
	}

	for _, r := range header {
		if !(r == '-' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
