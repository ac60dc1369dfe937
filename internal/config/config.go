// Package config loads the service configuration: a YAML config file, an
// optional YAML secrets file, then environment overrides. Values are read
// once at startup and never re-read.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so it parses from YAML and environment
// strings like "72h" or "30m".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	ListenAddr   string `yaml:"listen_addr" env:"CERO_LISTEN_ADDR"`
	BaseURL      string `yaml:"base_url" env:"CERO_BASE_URL"`
	DatabasePath string `yaml:"database_path" env:"CERO_DB_PATH"`
	TemplatesDir string `yaml:"templates_dir" env:"CERO_TEMPLATES_DIR"`
	LogLevel     string `yaml:"log_level" env:"CERO_LOG_LEVEL"`

	SessionDuration  Duration `yaml:"session_duration" env:"CERO_SESSION_DURATION"`
	InactivityWindow Duration `yaml:"inactivity_window" env:"CERO_INACTIVITY_WINDOW"`

	// RateLimitPerMinute bounds login/signup and report generation
	// attempts per client IP per minute.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" env:"CERO_RATE_LIMIT_PER_MINUTE"`

	BcryptCost int `yaml:"bcrypt_cost" env:"CERO_BCRYPT_COST"`

	Secrets Secrets `yaml:"-"`
}

// Secrets holds values kept out of the main config file. The bootstrap
// admin is only used when the users table is empty.
type Secrets struct {
	BootstrapAdminEmail    string `yaml:"bootstrap_admin_email" env:"CERO_BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `yaml:"bootstrap_admin_password" env:"CERO_BOOTSTRAP_ADMIN_PASSWORD"`
	CookieSecure           bool   `yaml:"cookie_secure" env:"CERO_COOKIE_SECURE"`
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	return Config{
		ListenAddr:         ":8080",
		DatabasePath:       "cero.db",
		TemplatesDir:       "web/templates",
		LogLevel:           "info",
		SessionDuration:    Duration(7 * 24 * time.Hour),
		InactivityWindow:   Duration(24 * time.Hour),
		RateLimitPerMinute: 10,
		BcryptCost:         0, // bcrypt.DefaultCost
	}
}

// Load reads the config file and secrets file (either may be empty paths),
// applies environment overrides, and validates the result.
func Load(configPath, secretsPath string) (Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := readYAML(configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", configPath, err)
		}
	}
	if secretsPath != "" {
		if err := readYAML(secretsPath, &cfg.Secrets); err != nil {
			return cfg, fmt.Errorf("secrets file %s: %w", secretsPath, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := env.Parse(&cfg.Secrets); err != nil {
		return cfg, fmt.Errorf("parse env secrets: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.SessionDuration <= 0 {
		return fmt.Errorf("session_duration must be positive")
	}
	if c.InactivityWindow <= 0 {
		return fmt.Errorf("inactivity_window must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate_limit_per_minute must be positive")
	}
	return nil
}

func readYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}
