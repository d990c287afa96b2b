package mirror

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "muwi-backup/internal/errors"
)

// ProviderType names a mirror storage backend.
type ProviderType string

const (
	ProviderLocal ProviderType = "LOCAL"
	ProviderS3    ProviderType = "S3"
	ProviderAzure ProviderType = "AZURE"
	ProviderGCS   ProviderType = "GCS"
)

// Config configures offsite copies of saved snapshots.
type Config struct {
	Enabled     bool              `mapstructure:"enabled" yaml:"enabled"`
	Provider    ProviderType      `mapstructure:"provider" yaml:"provider"`
	Prefix      string            `mapstructure:"prefix" yaml:"prefix"`
	MaxCopies   int               `mapstructure:"max_copies" yaml:"max_copies"`
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression"`
	Retry       RetryConfig       `mapstructure:"retry" yaml:"retry"`
	Local       *LocalConfig      `mapstructure:"local" yaml:"local,omitempty"`
	S3          *S3Config         `mapstructure:"s3" yaml:"s3,omitempty"`
	Azure       *AzureConfig      `mapstructure:"azure" yaml:"azure,omitempty"`
	GCS         *GCSConfig        `mapstructure:"gcs" yaml:"gcs,omitempty"`
}

// CompressionConfig selects how copies are compressed.
type CompressionConfig struct {
	Algorithm CompressionType `mapstructure:"algorithm" yaml:"algorithm"`
	Level     int             `mapstructure:"level" yaml:"level"`
}

// RetryConfig bounds how often a failed upload is attempted
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay" yaml:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// SetDefaults fills unset retry fields from the default policy
func (r *RetryConfig) SetDefaults() {
	defaults := apperrors.DefaultRetryConfig()
	if r.MaxAttempts == 0 {
		r.MaxAttempts = defaults.MaxAttempts
	}
	if r.BaseDelay == 0 {
		r.BaseDelay = defaults.BaseDelay
	}
	if r.MaxDelay == 0 {
		r.MaxDelay = defaults.MaxDelay
	}
}

// Validate validates the retry policy
func (r *RetryConfig) Validate() error {
	if r.MaxAttempts < 0 {
		return fmt.Errorf("retry max_attempts cannot be negative: %d", r.MaxAttempts)
	}
	if r.BaseDelay < 0 || r.MaxDelay < 0 {
		return fmt.Errorf("retry delays cannot be negative")
	}
	if r.MaxDelay < r.BaseDelay {
		return fmt.Errorf("retry max_delay %s is shorter than base_delay %s", r.MaxDelay, r.BaseDelay)
	}
	return nil
}

func (r RetryConfig) handlerConfig() apperrors.RetryConfig {
	config := apperrors.DefaultRetryConfig()
	config.MaxAttempts = r.MaxAttempts
	if r.BaseDelay > 0 {
		config.BaseDelay = r.BaseDelay
	}
	if r.MaxDelay > 0 {
		config.MaxDelay = r.MaxDelay
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = config.BaseDelay
	}
	return config
}

// LocalConfig for a mirror directory on another volume
type LocalConfig struct {
	BasePath    string      `mapstructure:"base_path" yaml:"base_path"`
	Permissions os.FileMode `mapstructure:"permissions" yaml:"permissions"`
}

// S3Config for Amazon S3 or an S3 compatible endpoint
type S3Config struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region"`
	AccessKey      string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey      string `mapstructure:"secret_key" yaml:"secret_key"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// AzureConfig for Azure Blob Storage
type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
}

// GCSConfig for Google Cloud Storage
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	ProjectID       string `mapstructure:"project_id" yaml:"project_id"`
}

// SetDefaults sets default values for the mirror configuration
func (c *Config) SetDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.Prefix == "" {
		c.Prefix = "muwi-backups/"
	}
	if c.MaxCopies == 0 {
		c.MaxCopies = 10
	}
	c.Compression.SetDefaults()
	c.Retry.SetDefaults()

	switch c.Provider {
	case ProviderLocal:
		if c.Local == nil {
			c.Local = &LocalConfig{}
		}
		c.Local.SetDefaults()
	case ProviderS3:
		if c.S3 == nil {
			c.S3 = &S3Config{}
		}
		c.S3.SetDefaults()
	case ProviderAzure:
		if c.Azure == nil {
			c.Azure = &AzureConfig{}
		}
	case ProviderGCS:
		if c.GCS == nil {
			c.GCS = &GCSConfig{}
		}
		c.GCS.SetDefaults()
	}
}

// Validate validates the mirror configuration
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxCopies < 0 {
		return fmt.Errorf("max_copies cannot be negative: %d", c.MaxCopies)
	}
	if err := c.Compression.Validate(); err != nil {
		return err
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}

	switch c.Provider {
	case ProviderLocal:
		if c.Local == nil {
			return fmt.Errorf("local mirror configuration is required")
		}
		return c.Local.Validate()
	case ProviderS3:
		if c.S3 == nil {
			return fmt.Errorf("S3 mirror configuration is required")
		}
		return c.S3.Validate()
	case ProviderAzure:
		if c.Azure == nil {
			return fmt.Errorf("Azure mirror configuration is required")
		}
		return c.Azure.Validate()
	case ProviderGCS:
		if c.GCS == nil {
			return fmt.Errorf("GCS mirror configuration is required")
		}
		return c.GCS.Validate()
	default:
		return fmt.Errorf("unsupported mirror provider: %s", c.Provider)
	}
}

// LoadFromEnvironment loads mirror configuration from MUWI_MIRROR_* variables
func (c *Config) LoadFromEnvironment() {
	if val := os.Getenv("MUWI_MIRROR_ENABLED"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			c.Enabled = parsed
		}
	}
	if val := os.Getenv("MUWI_MIRROR_PROVIDER"); val != "" {
		c.Provider = ProviderType(strings.ToUpper(val))
	}
	if val := os.Getenv("MUWI_MIRROR_PREFIX"); val != "" {
		c.Prefix = val
	}
	if val := os.Getenv("MUWI_MIRROR_MAX_COPIES"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			c.MaxCopies = parsed
		}
	}
	if val := os.Getenv("MUWI_MIRROR_COMPRESSION"); val != "" {
		c.Compression.Algorithm = CompressionType(strings.ToUpper(val))
	}

	switch c.Provider {
	case ProviderLocal:
		if c.Local == nil {
			c.Local = &LocalConfig{}
		}
		if val := os.Getenv("MUWI_MIRROR_LOCAL_PATH"); val != "" {
			c.Local.BasePath = val
		}
	case ProviderS3:
		if c.S3 == nil {
			c.S3 = &S3Config{}
		}
		c.S3.LoadFromEnvironment()
	case ProviderAzure:
		if c.Azure == nil {
			c.Azure = &AzureConfig{}
		}
		c.Azure.LoadFromEnvironment()
	case ProviderGCS:
		if c.GCS == nil {
			c.GCS = &GCSConfig{}
		}
		if val := os.Getenv("MUWI_MIRROR_GCS_BUCKET"); val != "" {
			c.GCS.Bucket = val
		}
		if val := os.Getenv("MUWI_MIRROR_GCS_CREDENTIALS_PATH"); val != "" {
			c.GCS.CredentialsPath = val
		}
	}
}

// SetDefaults picks gzip at its default level
func (cc *CompressionConfig) SetDefaults() {
	if cc.Algorithm == "" {
		cc.Algorithm = CompressionTypeGzip
	}
	if cc.Level == 0 {
		switch cc.Algorithm {
		case CompressionTypeGzip:
			cc.Level = 6
		case CompressionTypeLZ4:
			cc.Level = 1
		case CompressionTypeZstd:
			cc.Level = 3
		}
	}
}

// Validate checks the algorithm and its level range
func (cc *CompressionConfig) Validate() error {
	switch cc.Algorithm {
	case CompressionTypeNone:
		return nil
	case CompressionTypeGzip:
		if cc.Level < 1 || cc.Level > 9 {
			return fmt.Errorf("gzip compression level must be between 1 and 9, got %d", cc.Level)
		}
	case CompressionTypeLZ4:
		if cc.Level < 1 || cc.Level > 12 {
			return fmt.Errorf("lz4 compression level must be between 1 and 12, got %d", cc.Level)
		}
	case CompressionTypeZstd:
		if cc.Level < 1 || cc.Level > 22 {
			return fmt.Errorf("zstd compression level must be between 1 and 22, got %d", cc.Level)
		}
	default:
		return fmt.Errorf("invalid compression algorithm: %s", cc.Algorithm)
	}
	return nil
}

// SetDefaults sets default values for local mirror configuration
func (lc *LocalConfig) SetDefaults() {
	if lc.Permissions == 0 {
		lc.Permissions = 0o755
	}
}

// Validate validates local mirror configuration
func (lc *LocalConfig) Validate() error {
	if lc.BasePath == "" {
		return fmt.Errorf("local mirror base path is required")
	}
	return nil
}

// SetDefaults sets default values for S3 mirror configuration
func (s3c *S3Config) SetDefaults() {
	if s3c.Region == "" {
		s3c.Region = "us-east-1"
	}
}

// Validate validates S3 mirror configuration
func (s3c *S3Config) Validate() error {
	if s3c.Bucket == "" {
		return fmt.Errorf("S3 bucket is required")
	}
	if s3c.Region == "" {
		return fmt.Errorf("S3 region is required")
	}
	if s3c.AccessKey == "" || s3c.SecretKey == "" {
		return fmt.Errorf("S3 access key and secret key are required")
	}
	return nil
}

// LoadFromEnvironment loads S3 mirror configuration from environment variables
func (s3c *S3Config) LoadFromEnvironment() {
	if val := os.Getenv("MUWI_MIRROR_S3_BUCKET"); val != "" {
		s3c.Bucket = val
	}
	if val := os.Getenv("MUWI_MIRROR_S3_REGION"); val != "" {
		s3c.Region = val
	}
	if val := os.Getenv("MUWI_MIRROR_S3_ACCESS_KEY"); val != "" {
		s3c.AccessKey = val
	}
	if val := os.Getenv("MUWI_MIRROR_S3_SECRET_KEY"); val != "" {
		s3c.SecretKey = val
	}
	if val := os.Getenv("MUWI_MIRROR_S3_ENDPOINT"); val != "" {
		s3c.Endpoint = val
	}
}

// Validate validates Azure mirror configuration
func (ac *AzureConfig) Validate() error {
	if ac.AccountName == "" {
		return fmt.Errorf("Azure account name is required")
	}
	if ac.AccountKey == "" {
		return fmt.Errorf("Azure account key is required")
	}
	if ac.ContainerName == "" {
		return fmt.Errorf("Azure container name is required")
	}
	return nil
}

// LoadFromEnvironment loads Azure mirror configuration from environment variables
func (ac *AzureConfig) LoadFromEnvironment() {
	if val := os.Getenv("MUWI_MIRROR_AZURE_ACCOUNT_NAME"); val != "" {
		ac.AccountName = val
	}
	if val := os.Getenv("MUWI_MIRROR_AZURE_ACCOUNT_KEY"); val != "" {
		ac.AccountKey = val
	}
	if val := os.Getenv("MUWI_MIRROR_AZURE_CONTAINER_NAME"); val != "" {
		ac.ContainerName = val
	}
}

// SetDefaults falls back to the standard credentials variable
func (gc *GCSConfig) SetDefaults() {
	if gc.CredentialsPath == "" {
		gc.CredentialsPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
}

// Validate validates GCS mirror configuration
func (gc *GCSConfig) Validate() error {
	if gc.Bucket == "" {
		return fmt.Errorf("GCS bucket is required")
	}
	return nil
}
