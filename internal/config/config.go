package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Pool     PoolConfig     `toml:"pool"`
	Auth     AuthConfig     `toml:"auth"`
	Audit    AuditConfig    `toml:"audit"`
}

type ServerConfig struct {
	Addr     string `toml:"addr"`
	BasePath string `toml:"base_path"`
	// IdleTimeoutMin is the session idle timeout in minutes.
	IdleTimeoutMin int `toml:"idle_timeout_min"`
}

type DatabaseConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSL      bool   `toml:"ssl"`
}

type PoolConfig struct {
	MinConns int `toml:"min_conns"`
	MaxConns int `toml:"max_conns"`
	// AcquireTimeoutSec bounds the wait for a free connection.
	AcquireTimeoutSec int `toml:"acquire_timeout_sec"`
	// QueryTimeoutSec bounds a single database call.
	QueryTimeoutSec int `toml:"query_timeout_sec"`
}

type AuthConfig struct {
	// Secret enables bearer-token auth on the tool endpoint when non-empty.
	Secret         string `toml:"secret"`
	TokenExpiryMin int    `toml:"token_expiry_min"`
}

type AuditConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8010",
			BasePath:       "/mcp",
			IdleTimeoutMin: 15,
		},
		Database: DatabaseConfig{
			Host: "localhost",
			Port: 5432,
		},
		Pool: PoolConfig{
			MinConns:          1,
			MaxConns:          10,
			AcquireTimeoutSec: 10,
			QueryTimeoutSec:   30,
		},
		Auth: AuthConfig{
			TokenExpiryMin: 1440, // 24h
		},
		Audit: AuditConfig{
			Enabled: false,
			Path:    "data/audit.db",
		},
	}
}

// Load reads the TOML config file, then applies environment overrides.
// A missing file is not an error; defaults plus environment win.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv honours the conventional libpq environment variables plus the
// pool tuning knobs the service has always read.
func (c *Config) applyEnv() {
	if v := firstEnv("PGHOST", "POSTGRES_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("PGPORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := firstEnv("PGUSER", "POSTGRES_USER"); v != "" {
		c.Database.User = v
	}
	if v := firstEnv("PGPASSWORD", "POSTGRES_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := firstEnv("PGDATABASE", "POSTGRES_DB"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("PGSSL"); v != "" {
		switch strings.ToLower(v) {
		case "0", "false", "no":
			c.Database.SSL = false
		default:
			c.Database.SSL = true
		}
	}
	if v := os.Getenv("PGPOOL_MIN_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pool.MinConns = n
		}
	}
	if v := os.Getenv("PGPOOL_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pool.MaxConns = n
		}
	}
	if v := os.Getenv("PGPOOL_COMMAND_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pool.QueryTimeoutSec = n
		}
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks the settings the pool cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.User == "" {
		missing = append(missing, "user")
	}
	if c.Database.Password == "" {
		missing = append(missing, "password")
	}
	if c.Database.Name == "" {
		missing = append(missing, "name")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing Postgres settings: %s", strings.Join(missing, ", "))
	}
	if c.Pool.MaxConns < 1 {
		return fmt.Errorf("pool max_conns must be at least 1, got %d", c.Pool.MaxConns)
	}
	if c.Pool.MinConns > c.Pool.MaxConns {
		return fmt.Errorf("pool min_conns %d exceeds max_conns %d", c.Pool.MinConns, c.Pool.MaxConns)
	}
	return nil
}

// DSN builds the connection string pgx consumes.
// DSN assembles the connection URL. Credentials are escaped, so passwords
// containing URL metacharacters pass through intact.
func (c *Config) DSN() string {
	ssl := "disable"
	if c.Database.SSL {
		ssl = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + ssl,
	}
	return u.String()
}
