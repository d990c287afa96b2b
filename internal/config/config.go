// Package config holds the application configuration of muwi-backup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"muwi-backup/internal/display"
	"muwi-backup/internal/logging"
	"muwi-backup/internal/mirror"
	"muwi-backup/internal/store"
)

// DefaultAppVersion is stamped into snapshots when no version is configured.
const DefaultAppVersion = "1.0.0"

// Config is the complete application configuration
type Config struct {
	AppVersion   string         `mapstructure:"app_version" yaml:"app_version"`
	SettingsPath string         `mapstructure:"settings_path" yaml:"settings_path"`
	Store        StoreConfig    `mapstructure:"store" yaml:"store"`
	Logging      LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Display      display.Config `mapstructure:"display" yaml:"display"`
	Mirror       mirror.Config  `mapstructure:"mirror" yaml:"mirror"`
	Server       ServerConfig   `mapstructure:"server" yaml:"server"`
}

// StoreConfig selects the record store driver
type StoreConfig struct {
	Driver string             `mapstructure:"driver" yaml:"driver"`
	Badger store.BadgerConfig `mapstructure:"badger" yaml:"badger"`
	MySQL  store.SQLConfig    `mapstructure:"mysql" yaml:"mysql"`
}

// LoggingConfig defines log output
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// ServerConfig for the HTTP sandbox
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() *Config {
	c := &Config{Display: *display.DefaultConfig()}
	c.SetDefaults()
	return c
}

// DataDir is the directory holding the embedded store and settings.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".muwi-backup"
	}
	return filepath.Join(home, ".muwi-backup")
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.AppVersion == "" {
		c.AppVersion = DefaultAppVersion
	}
	if c.SettingsPath == "" {
		c.SettingsPath = filepath.Join(DataDir(), "settings.yaml")
	}
	c.Store.SetDefaults()
	c.Logging.SetDefaults()
	c.Display.SetDefaults()
	c.Mirror.SetDefaults()
	c.Server.SetDefaults()
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := c.Display.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("display: %w", err))
	}
	if err := c.Mirror.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("mirror: %w", err))
	}
	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if c.SettingsPath == "" {
		errs = append(errs, fmt.Errorf("settings_path is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

// LoadFromEnvironment loads configuration from MUWI_BACKUP_* and MUWI_MIRROR_* variables
func (c *Config) LoadFromEnvironment() {
	if val := os.Getenv("MUWI_BACKUP_APP_VERSION"); val != "" {
		c.AppVersion = val
	}
	if val := os.Getenv("MUWI_BACKUP_SETTINGS_PATH"); val != "" {
		c.SettingsPath = val
	}
	c.Store.LoadFromEnvironment()
	c.Logging.LoadFromEnvironment()
	if val := os.Getenv("MUWI_BACKUP_SERVER_ADDR"); val != "" {
		c.Server.Addr = val
	}
	c.Mirror.LoadFromEnvironment()
}

// SetDefaults defaults to the embedded store under the data directory
func (sc *StoreConfig) SetDefaults() {
	if sc.Driver == "" {
		sc.Driver = store.DriverBadger
	}
	if sc.Badger.Path == "" && !sc.Badger.InMemory {
		sc.Badger.Path = filepath.Join(DataDir(), "data")
	}
	if sc.Driver == store.DriverMySQL {
		sc.MySQL.SetDefaults()
	}
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	switch sc.Driver {
	case store.DriverBadger:
		if sc.Badger.Path == "" && !sc.Badger.InMemory {
			return fmt.Errorf("badger path is required unless in_memory is set")
		}
		return nil
	case store.DriverMySQL:
		return sc.MySQL.Validate()
	default:
		return fmt.Errorf("invalid store driver: %s", sc.Driver)
	}
}

// LoadFromEnvironment loads store configuration from environment variables
func (sc *StoreConfig) LoadFromEnvironment() {
	if val := os.Getenv("MUWI_BACKUP_STORE_DRIVER"); val != "" {
		sc.Driver = strings.ToLower(val)
	}
	if val := os.Getenv("MUWI_BACKUP_BADGER_PATH"); val != "" {
		sc.Badger.Path = val
	}
	if val := os.Getenv("MUWI_BACKUP_MYSQL_HOST"); val != "" {
		sc.MySQL.Host = val
	}
	if val := os.Getenv("MUWI_BACKUP_MYSQL_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			sc.MySQL.Port = port
		}
	}
	if val := os.Getenv("MUWI_BACKUP_MYSQL_USERNAME"); val != "" {
		sc.MySQL.Username = val
	}
	if val := os.Getenv("MUWI_BACKUP_MYSQL_PASSWORD"); val != "" {
		sc.MySQL.Password = val
	}
	if val := os.Getenv("MUWI_BACKUP_MYSQL_DATABASE"); val != "" {
		sc.MySQL.Database = val
	}
}

// SetDefaults sets default values for logging
func (lc *LoggingConfig) SetDefaults() {
	if lc.Level == "" {
		lc.Level = string(logging.LogLevelNormal)
	}
	if lc.Format == "" {
		lc.Format = "text"
	}
}

// Validate validates logging configuration
func (lc *LoggingConfig) Validate() error {
	switch logging.LogLevel(lc.Level) {
	case logging.LogLevelQuiet, logging.LogLevelNormal, logging.LogLevelVerbose, logging.LogLevelDebug:
	default:
		return fmt.Errorf("invalid log level '%s', must be one of: quiet, normal, verbose, debug", lc.Level)
	}
	if lc.Format != "text" && lc.Format != "json" {
		return fmt.Errorf("invalid log format '%s', must be text or json", lc.Format)
	}
	return nil
}

// LoadFromEnvironment loads logging configuration from environment variables
func (lc *LoggingConfig) LoadFromEnvironment() {
	if val := os.Getenv("MUWI_BACKUP_LOG_LEVEL"); val != "" {
		lc.Level = strings.ToLower(val)
	}
	if val := os.Getenv("MUWI_BACKUP_LOG_FORMAT"); val != "" {
		lc.Format = strings.ToLower(val)
	}
	if val := os.Getenv("MUWI_BACKUP_LOG_FILE"); val != "" {
		lc.File = val
	}
}

// LoggerConfig converts to the logger configuration
func (lc LoggingConfig) LoggerConfig() logging.Config {
	return logging.Config{
		Level:   logging.LogLevel(lc.Level),
		Format:  lc.Format,
		LogFile: lc.File,
	}
}

// SetDefaults sets default values for the HTTP server
func (sc *ServerConfig) SetDefaults() {
	if sc.Addr == "" {
		sc.Addr = "127.0.0.1:8420"
	}
	if sc.ShutdownTimeout == 0 {
		sc.ShutdownTimeout = 10 * time.Second
	}
}

// Validate validates the HTTP server configuration
func (sc *ServerConfig) Validate() error {
	if sc.Addr == "" {
		return fmt.Errorf("server address is required")
	}
	if sc.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout cannot be negative")
	}
	return nil
}
