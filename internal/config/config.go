// Package config provides YAML-based configuration loading for Floorboard.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/zulandar/floorboard/internal/access"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Floorboard configuration, loaded from floorboard.yaml.
type Config struct {
	Owner     string          `yaml:"owner"`
	Database  DatabaseConfig  `yaml:"database"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Auth      AuthConfig      `yaml:"auth"`
	Redis     RedisConfig     `yaml:"redis"`
	NATS      NATSConfig      `yaml:"nats"`
	Notify    NotifyConfig    `yaml:"notify"`
	Digest    DigestConfig    `yaml:"digest"`
	Roles     []RoleConfig    `yaml:"roles"`
	Log       LogConfig       `yaml:"log"`
}

// Supported database drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds connection settings for the backing SQL database.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite only
}

// DashboardConfig holds HTTP API settings.
type DashboardConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	// DuplicateGuard makes production fan-out skip stages that already
	// have a task for the order.
	DuplicateGuard bool `yaml:"duplicate_guard"`
}

// AuthConfig holds token signing settings.
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	TokenMinutes int    `yaml:"token_minutes"`
}

// RedisConfig enables the shared role-config cache when Addr is set.
type RedisConfig struct {
	Addr   string `yaml:"addr"`
	DB     int    `yaml:"db"`
	TTLSec int    `yaml:"ttl_sec"`
}

// NATSConfig enables cross-instance change relay when URL is set.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// NotifyConfig configures the outbound notification sinks. Each sink is
// enabled by its credentials being present.
type NotifyConfig struct {
	Slack   ChatConfig `yaml:"slack"`
	Discord ChatConfig `yaml:"discord"`
	SMTP    SMTPConfig `yaml:"smtp"`
}

// ChatConfig holds bot credentials for one chat platform.
type ChatConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// Enabled reports whether the platform has credentials.
func (c ChatConfig) Enabled() bool { return c.BotToken != "" }

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	TLS      bool   `yaml:"tls"`
}

// Enabled reports whether mail can be sent.
func (c SMTPConfig) Enabled() bool { return c.Host != "" && c.From != "" }

// DigestConfig schedules the daily production digest.
type DigestConfig struct {
	Cron     string `yaml:"cron"`
	Platform string `yaml:"platform"` // slack or discord
	Channel  string `yaml:"channel"`
}

// RoleConfig seeds one role's permissions. Permissions maps a module key to
// the granted levels, e.g. tasks: [view, edit].
type RoleConfig struct {
	ID          string              `yaml:"id"`
	Name        string              `yaml:"name"`
	Permissions map[string][]string `yaml:"permissions"`
}

// LogConfig sets the zerolog level.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty *bool  `yaml:"pretty"`
}

// Environment variables overlaid on the YAML file. A .env file next to the
// config file is loaded first; variables already set in the environment win.
const (
	EnvJWTSecret     = "FB_JWT_SECRET"
	EnvDBPassword    = "FB_DB_PASSWORD"
	EnvSlackToken    = "FB_SLACK_TOKEN"
	EnvDiscordToken  = "FB_DISCORD_TOKEN"
	EnvSMTPPassword  = "FB_SMTP_PASSWORD"
	minJWTSecretSize = 16
)

// Load reads a YAML config file from path, overlays secrets from the
// environment (and an adjacent .env file) and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envFile, err)
	}
	return parse(data, os.LookupEnv)
}

// Parse unmarshals YAML bytes into a validated Config without consulting
// the environment.
func Parse(data []byte) (*Config, error) {
	return parse(data, nil)
}

func parse(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if lookup != nil {
		cfg.applyEnv(lookup)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays secrets from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(&c.Auth.JWTSecret, EnvJWTSecret)
	set(&c.Database.Password, EnvDBPassword)
	set(&c.Notify.Slack.BotToken, EnvSlackToken)
	set(&c.Notify.Discord.BotToken, EnvDiscordToken)
	set(&c.Notify.SMTP.Password, EnvSMTPPassword)
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMySQL
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case DriverPostgres:
			c.Database.Port = 5432
		default:
			c.Database.Port = 3306
		}
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Name == "" && c.Owner != "" {
		c.Database.Name = "floorboard_" + c.Owner
	}
	if c.Database.Path == "" && c.Owner != "" {
		c.Database.Path = "floorboard_" + c.Owner + ".db"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8080
	}
	if c.Auth.TokenMinutes == 0 {
		c.Auth.TokenMinutes = 12 * 60
	}
	if c.Redis.TTLSec == 0 {
		c.Redis.TTLSec = 300
	}
	if c.Notify.SMTP.Port == 0 {
		c.Notify.SMTP.Port = 587
	}
	if c.Digest.Platform == "" {
		switch {
		case c.Notify.Slack.Enabled():
			c.Digest.Platform = "slack"
		case c.Notify.Discord.Enabled():
			c.Digest.Platform = "discord"
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Owner == "" {
		errs = append(errs, "owner is required")
	}
	switch c.Database.Driver {
	case DriverMySQL, DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of mysql, postgres, sqlite", c.Database.Driver))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretSize {
		errs = append(errs, fmt.Sprintf("auth.jwt_secret must be at least %d characters", minJWTSecretSize))
	}
	if c.Auth.TokenMinutes < 0 {
		errs = append(errs, "auth.token_minutes must be positive")
	}
	if c.Digest.Cron != "" {
		if _, err := cron.ParseStandard(c.Digest.Cron); err != nil {
			errs = append(errs, fmt.Sprintf("digest.cron: %v", err))
		}
		if c.Digest.Platform != "slack" && c.Digest.Platform != "discord" {
			errs = append(errs, "digest.platform must be slack or discord when digest.cron is set")
		}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}

	seen := make(map[string]bool, len(c.Roles))
	for i, r := range c.Roles {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("roles[%d].id is required", i))
		} else if r.ID == access.RoleAdmin {
			errs = append(errs, fmt.Sprintf("roles[%d]: %q is built in", i, access.RoleAdmin))
		} else if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("roles[%d]: duplicate id %q", i, r.ID))
		}
		seen[r.ID] = true
		if r.Name == "" {
			errs = append(errs, fmt.Sprintf("roles[%d].name is required", i))
		}
		if _, err := r.AccessConfig(); err != nil {
			errs = append(errs, fmt.Sprintf("roles[%d]: %v", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AccessConfig converts the YAML role into an access.RoleConfig, rejecting
// unknown module keys and levels.
func (r RoleConfig) AccessConfig() (*access.RoleConfig, error) {
	out := &access.RoleConfig{ID: r.ID, Name: r.Name, Permissions: make(map[access.ModuleKey]access.Permission, len(r.Permissions))}
	for module, levels := range r.Permissions {
		key, err := access.ParseModuleKey(module)
		if err != nil {
			return nil, err
		}
		var p access.Permission
		for _, l := range levels {
			switch strings.ToLower(strings.TrimSpace(l)) {
			case "view":
				p.View = true
			case "edit":
				p.Edit = true
			default:
				return nil, fmt.Errorf("module %s: unknown level %q", module, l)
			}
		}
		out.Permissions[key] = p
	}
	return out, nil
}
