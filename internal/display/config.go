package display

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// Config holds terminal output options
type Config struct {
	ColorEnabled bool   `mapstructure:"color_enabled" yaml:"color_enabled"`
	Theme        string `mapstructure:"theme" yaml:"theme"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format"`
	UseIcons     bool   `mapstructure:"use_icons" yaml:"use_icons"`
	QuietMode    bool   `mapstructure:"quiet" yaml:"quiet"`

	Writer io.Writer `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns the default output configuration
func DefaultConfig() *Config {
	return &Config{
		ColorEnabled: true,
		Theme:        "dark",
		OutputFormat: string(FormatTable),
		UseIcons:     true,
		Writer:       os.Stdout,
	}
}

// SetDefaults fills unset options
func (c *Config) SetDefaults() {
	if c.Theme == "" {
		c.Theme = "dark"
	}
	if c.OutputFormat == "" {
		c.OutputFormat = string(FormatTable)
	}
	if c.Writer == nil {
		c.Writer = os.Stdout
	}
}

// Validate validates the output configuration
func (c *Config) Validate() error {
	var problems []string

	switch c.Theme {
	case "dark", "light", "high-contrast", "plain":
	default:
		problems = append(problems, fmt.Sprintf("invalid theme '%s'", c.Theme))
	}

	switch OutputFormat(c.OutputFormat) {
	case FormatTable, FormatJSON, FormatYAML:
	default:
		problems = append(problems, fmt.Sprintf("invalid output format '%s', must be one of: table, json, yaml", c.OutputFormat))
	}

	if len(problems) > 0 {
		return fmt.Errorf("display configuration validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}
