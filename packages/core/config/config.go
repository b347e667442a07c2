package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported protocol selections.
const (
	ProtocolAuto  = "auto"
	ProtocolHTTP1 = "http/1.1"
	ProtocolHTTP2 = "http/2"
)

// Config represents the riva configuration
type Config struct {
	Timeout            int     `json:"timeout,omitempty" yaml:"timeout,omitempty"`                       // connection TTL, seconds
	MaxPoolSize        int     `json:"maxPoolSize,omitempty" yaml:"maxPoolSize,omitempty"`               // pooled connections per process
	Protocol           string  `json:"protocol,omitempty" yaml:"protocol,omitempty"`                     // auto, http/1.1 or http/2
	UserAgent          string  `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	HistoryPath        string  `json:"historyPath,omitempty" yaml:"historyPath,omitempty"`               // SQLite visit log location
	RateLimit          float64 `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"`                   // requests/sec per host, 0 disables
	EnableMetrics      *bool   `json:"enableMetrics,omitempty" yaml:"enableMetrics,omitempty"`
	StrictServerErrors *bool   `json:"strictServerErrors,omitempty" yaml:"strictServerErrors,omitempty"` // treat 5xx as failures
	EnableHistory      *bool   `json:"enableHistory,omitempty" yaml:"enableHistory,omitempty"`
	Verbose            *bool   `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor            *bool   `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// BoolPtr returns a pointer to a bool value
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetEnableMetrics returns the metrics setting, defaulting to true
func (c *Config) GetEnableMetrics() bool {
	return getBool(c.EnableMetrics, true)
}

// GetStrictServerErrors returns the 5xx policy, defaulting to false
func (c *Config) GetStrictServerErrors() bool {
	return getBool(c.StrictServerErrors, false)
}

// GetEnableHistory returns the history setting, defaulting to true
func (c *Config) GetEnableHistory() bool {
	return getBool(c.EnableHistory, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names, checked in order
var ConfigFilenames = []string{
	".riva.config.json",
	"riva.config.json",
	".rivarc",
	".rivarc.json",
	".riva.config.yaml",
	"riva.config.yaml",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}
	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

// loadConfigFromFile loads configuration from a specific file. The
// extension selects the decoder; everything that is not YAML is JSON.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return config, nil
}

// Validate rejects values the pool and transports cannot work with.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.Timeout)
	}
	if c.MaxPoolSize <= 0 {
		return fmt.Errorf("maxPoolSize must be positive, got %d", c.MaxPoolSize)
	}
	switch c.Protocol {
	case ProtocolAuto, ProtocolHTTP1, ProtocolHTTP2:
	default:
		return fmt.Errorf("unknown protocol %q", c.Protocol)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rateLimit must not be negative, got %g", c.RateLimit)
	}
	return nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c // Copy

	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxPoolSize > 0 {
		result.MaxPoolSize = other.MaxPoolSize
	}
	if other.Protocol != "" {
		result.Protocol = other.Protocol
	}
	if other.UserAgent != "" {
		result.UserAgent = other.UserAgent
	}
	if other.HistoryPath != "" {
		result.HistoryPath = other.HistoryPath
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}

	// Boolean flags - only override if explicitly set in other config
	if other.EnableMetrics != nil {
		result.EnableMetrics = other.EnableMetrics
	}
	if other.StrictServerErrors != nil {
		result.StrictServerErrors = other.StrictServerErrors
	}
	if other.EnableHistory != nil {
		result.EnableHistory = other.EnableHistory
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
