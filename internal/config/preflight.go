package config

import (
	"fmt"
	"os"
	"path/filepath"

	"muwi-backup/internal/mirror"
	"muwi-backup/internal/store"
)

// PreflightResult reports whether the configured paths and providers look usable
type PreflightResult struct {
	Success          bool     `json:"success" yaml:"success"`
	Warnings         []string `json:"warnings" yaml:"warnings"`
	Errors           []string `json:"errors" yaml:"errors"`
	RecommendedFixes []string `json:"recommendedFixes" yaml:"recommended_fixes"`
}

// Preflight validates the configuration and checks that local directories are writable.
// It never contacts remote services.
func Preflight(c *Config) *PreflightResult {
	result := &PreflightResult{
		Success:          true,
		Warnings:         []string{},
		Errors:           []string{},
		RecommendedFixes: []string{},
	}

	if err := c.Validate(); err != nil {
		result.fail("Configuration validation failed: %v", err)
		return result
	}

	if c.Store.Driver == store.DriverBadger && !c.Store.Badger.InMemory {
		if err := checkWritableDir(c.Store.Badger.Path); err != nil {
			result.fail("Record store directory is not usable: %v", err)
		}
	}
	if err := checkWritableDir(filepath.Dir(c.SettingsPath)); err != nil {
		result.fail("Settings directory is not usable: %v", err)
	}

	if c.Mirror.Enabled {
		checkMirror(&c.Mirror, result)
	} else {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"Enable mirror to keep offsite copies of saved snapshots")
	}
	return result
}

func (r *PreflightResult) fail(format string, args ...interface{}) {
	r.Success = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func checkMirror(m *mirror.Config, result *PreflightResult) {
	switch m.Provider {
	case mirror.ProviderLocal:
		if err := checkWritableDir(filepath.Join(m.Local.BasePath, m.Prefix)); err != nil {
			result.fail("Mirror directory is not usable: %v", err)
		}
	case mirror.ProviderS3:
		if m.S3.Endpoint == "" && m.S3.Region == "" {
			result.Warnings = append(result.Warnings, "S3 region is not set")
		}
	case mirror.ProviderGCS:
		if m.GCS.CredentialsPath == "" {
			result.Warnings = append(result.Warnings, "GCS credentials path is not set, default credentials will be used")
			result.RecommendedFixes = append(result.RecommendedFixes,
				"Set credentials: export GOOGLE_APPLICATION_CREDENTIALS=/path/to/key.json")
		} else if _, err := os.Stat(m.GCS.CredentialsPath); err != nil {
			result.fail("GCS credentials file is not readable: %v", err)
		}
	}

	if m.Compression.Algorithm == mirror.CompressionTypeGzip && m.Compression.Level > 6 {
		result.RecommendedFixes = append(result.RecommendedFixes,
			"Consider compression level 6 or lower for faster uploads")
	}
}

// checkWritableDir creates dir when missing and writes a temporary file into it
func checkWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	testFile := filepath.Join(dir, ".muwi_write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("insufficient write permissions: %w", err)
	}
	return os.Remove(testFile)
}
