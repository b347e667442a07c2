package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 30, cfg.Timeout)
	assert.Equal(t, 10, cfg.MaxPoolSize)
	assert.Equal(t, ProtocolAuto, cfg.Protocol)
	assert.True(t, cfg.GetEnableMetrics())
	assert.False(t, cfg.GetStrictServerErrors())
	assert.True(t, cfg.IsDefault())
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.json",
		`{"timeout": 60, "maxPoolSize": 5, "protocol": "http/2", "noColor": true}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Timeout)
	assert.Equal(t, 5, cfg.MaxPoolSize)
	assert.Equal(t, ProtocolHTTP2, cfg.Protocol)
	assert.True(t, cfg.GetNoColor())
	// Untouched fields keep their defaults.
	assert.Equal(t, "riva/1.2", cfg.UserAgent)
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "riva.config.yaml",
		"timeout: 45\nprotocol: http/1.1\nrateLimit: 2.5\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 45, cfg.Timeout)
	assert.Equal(t, ProtocolHTTP1, cfg.Protocol)
	assert.Equal(t, 2.5, cfg.RateLimit)
}

func TestFindAndLoadConfigSearchOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "riva.config.json", `{"timeout": 99}`)
	writeFile(t, dir, ".riva.config.json", `{"timeout": 11}`)

	cfg, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 11, cfg.Timeout, "dotted name wins the search order")
}

func TestFindAndLoadConfigFallsBackToDefaults(t *testing.T) {
	cfg, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.IsDefault())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name    string
		content string
	}{
		{"bad-timeout.json", `{"timeout": -1}`},
		{"bad-pool.json", `{"maxPoolSize": -3}`},
		{"bad-protocol.json", `{"protocol": "spdy"}`},
		{"bad-rate.json", `{"rateLimit": -0.5}`},
		{"not-json.json", `{{{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.name, tc.content)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Timeout:  120,
		Protocol: ProtocolHTTP2,
		NoColor:  BoolPtr(true),
	}

	merged := base.Merge(override)

	assert.Equal(t, 120, merged.Timeout)
	assert.Equal(t, ProtocolHTTP2, merged.Protocol)
	assert.True(t, merged.GetNoColor())
	// Unset values in the override leave the base alone.
	assert.Equal(t, 10, merged.MaxPoolSize)
	assert.True(t, merged.GetEnableMetrics())
	// Base is untouched.
	assert.Equal(t, 30, base.Timeout)
}

func TestMergeNil(t *testing.T) {
	base := DefaultConfig()
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveAndReloadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.json")

	cfg := DefaultConfig()
	cfg.Timeout = 77
	require.NoError(t, cfg.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 77, loaded.Timeout)
}
