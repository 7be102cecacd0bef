package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jbweber/homelab/deptsvc/internal/datastore"
	"github.com/jbweber/homelab/deptsvc/internal/migrations"
)

// Config holds all configuration for the department service
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	// Greeting is served verbatim on GET /
	Greeting string `mapstructure:"greeting"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host                   string `mapstructure:"host"`
	Port                   string `mapstructure:"port"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds"`
}

// DatabaseConfig selects and tunes the backing store. Path is used for
// sqlite, DSN for postgres.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Path         string `mapstructure:"path"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"server.host":                     "DEPTSVC_HOST",
	"server.port":                     "DEPTSVC_PORT",
	"server.shutdown_timeout_seconds": "DEPTSVC_SHUTDOWN_TIMEOUT_SECONDS",
	"database.driver":                 "DEPTSVC_DB_DRIVER",
	"database.path":                   "DEPTSVC_DB_PATH",
	"database.dsn":                    "DEPTSVC_DB_DSN",
	"database.max_open_conns":         "DEPTSVC_DB_MAX_OPEN_CONNS",
	"database.max_idle_conns":         "DEPTSVC_DB_MAX_IDLE_CONNS",
	"log.level":                       "LOG_LEVEL",
	"log.format":                      "LOG_FORMAT",
	"greeting":                        "DEPTSVC_GREETING",
}

// flagBindings maps config keys to the command line flags that override them.
var flagBindings = map[string]string{
	"server.port":     "port",
	"database.driver": "db-driver",
	"database.path":   "db-path",
	"log.level":       "log-level",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "~/deptsvc/data/deptsvc.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("greeting", "Welcome to the department service!")
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	v := viper.New()
	setDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(fmt.Sprintf("invalid config defaults: %v", err))
	}
	return cfg
}

// Load builds the configuration from defaults, the YAML file at path (or
// ./deptsvc.yaml when path is empty), a .env file in the working directory,
// the process environment and finally any changed flags. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("deptsvc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if flags != nil {
		for key, name := range flagBindings {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Only the implicit ./deptsvc.yaml is optional.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to start the service.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	dialect, err := datastore.ParseDialect(c.Database.Driver)
	if err != nil {
		return err
	}
	switch dialect {
	case datastore.Postgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for postgres")
		}
	case datastore.SQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	}
	return nil
}

// Addr returns the HTTP bind address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// ShutdownTimeout returns how long in-flight requests get on shutdown.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	if s.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

// InitializeDatabase opens the configured datastore and runs migrations
func (c *Config) InitializeDatabase(ctx context.Context) (*datastore.Datastore, error) {
	ds, err := c.OpenDatabase(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.runMigrations(ctx, ds); err != nil {
		ds.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return ds, nil
}

// OpenDatabase opens the configured datastore without touching the schema.
func (c *Config) OpenDatabase(ctx context.Context) (*datastore.Datastore, error) {
	dialect, err := datastore.ParseDialect(c.Database.Driver)
	if err != nil {
		return nil, err
	}

	dsn := c.Database.DSN
	if dialect == datastore.SQLite {
		dbPath := c.expandPath(c.Database.Path)

		// Ensure database directory exists
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath
	}

	return datastore.Open(ctx, datastore.Options{
		Dialect:      dialect,
		DSN:          dsn,
		MaxOpenConns: c.Database.MaxOpenConns,
		MaxIdleConns: c.Database.MaxIdleConns,
	})
}

// expandPath expands ~ to home directory
func (c *Config) expandPath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Return original path if we can't get home dir
		return path
	}

	return filepath.Join(homeDir, path[2:])
}

func (c *Config) runMigrations(ctx context.Context, ds *datastore.Datastore) error {
	_, err := migrations.Apply(ctx, ds)
	return err
}
