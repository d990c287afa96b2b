package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable bound through viper.
const EnvPrefix = "MUWI_BACKUP"

// NewViper returns a viper instance reading path, or the default
// muwi-backup.yaml search locations when path is empty.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".muwi-backup")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/muwi-backup")
		v.AddConfigPath("$HOME")
	}

	v.SetDefault("display.color_enabled", true)
	v.SetDefault("display.use_icons", true)

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// Load reads the configuration file known to v (a missing file is not an error),
// then applies environment overrides and defaults and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	c.LoadFromEnvironment()
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

const templateHeader = `# muwi-backup configuration
#
# Precedence (highest first): command-line flags, environment variables,
# this file, built-in defaults. Secrets are better kept in the environment:
#   MUWI_BACKUP_MYSQL_PASSWORD, MUWI_MIRROR_S3_SECRET_KEY, MUWI_MIRROR_AZURE_ACCOUNT_KEY
`

// GenerateTemplate renders the default configuration as commented YAML
func GenerateTemplate() ([]byte, error) {
	c := DefaultConfig()
	c.Mirror.S3 = nil
	c.Mirror.Azure = nil
	c.Mirror.GCS = nil

	var buf bytes.Buffer
	buf.WriteString(templateHeader)
	buf.WriteString("\n")

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to marshal configuration: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal configuration: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes the template to path, refusing to replace an existing file
// unless overwrite is set. The previous file is kept as path.backup.
func WriteTemplate(path string, overwrite bool) error {
	data, err := GenerateTemplate()
	if err != nil {
		return err
	}

	if existing, err := os.ReadFile(path); err == nil {
		if !overwrite {
			return fmt.Errorf("configuration file already exists: %s", path)
		}
		if err := os.WriteFile(path+".backup", existing, 0o600); err != nil {
			return fmt.Errorf("failed to create backup of configuration file: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	return nil
}

// ListEnvironmentVariables lists every environment variable the configuration reads
func ListEnvironmentVariables() []string {
	return []string{
		"MUWI_BACKUP_APP_VERSION",
		"MUWI_BACKUP_SETTINGS_PATH",
		"MUWI_BACKUP_STORE_DRIVER",
		"MUWI_BACKUP_BADGER_PATH",
		"MUWI_BACKUP_MYSQL_HOST",
		"MUWI_BACKUP_MYSQL_PORT",
		"MUWI_BACKUP_MYSQL_USERNAME",
		"MUWI_BACKUP_MYSQL_PASSWORD",
		"MUWI_BACKUP_MYSQL_DATABASE",
		"MUWI_BACKUP_LOG_LEVEL",
		"MUWI_BACKUP_LOG_FORMAT",
		"MUWI_BACKUP_LOG_FILE",
		"MUWI_BACKUP_SERVER_ADDR",
		"MUWI_MIRROR_ENABLED",
		"MUWI_MIRROR_PROVIDER",
		"MUWI_MIRROR_PREFIX",
		"MUWI_MIRROR_MAX_COPIES",
		"MUWI_MIRROR_COMPRESSION",
		"MUWI_MIRROR_LOCAL_PATH",
		"MUWI_MIRROR_S3_BUCKET",
		"MUWI_MIRROR_S3_REGION",
		"MUWI_MIRROR_S3_ACCESS_KEY",
		"MUWI_MIRROR_S3_SECRET_KEY",
		"MUWI_MIRROR_S3_ENDPOINT",
		"MUWI_MIRROR_AZURE_ACCOUNT_NAME",
		"MUWI_MIRROR_AZURE_ACCOUNT_KEY",
		"MUWI_MIRROR_AZURE_CONTAINER_NAME",
		"MUWI_MIRROR_GCS_BUCKET",
		"MUWI_MIRROR_GCS_CREDENTIALS_PATH",
	}
}
