// Package config handles configuration loading and management for riva.
//
// It provides functionality for:
//   - Loading configuration from .riva.config.json / .riva.config.yaml files
//   - Default configuration values
//   - Merging file, environment and flag layers
package config
