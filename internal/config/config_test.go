package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/search", cfg.Search.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout())
	assert.Equal(t, 10, cfg.Search.ResultLimit)
	assert.Equal(t, "localhost", cfg.Roads.Host)
	assert.Equal(t, 5433, cfg.Roads.Port)
	assert.Equal(t, "nominatim", cfg.Roads.Name)
	assert.Equal(t, 8000, cfg.Roads.StatementTimeoutMS)
	assert.Equal(t, "us", cfg.Roads.CountryCode)
	assert.Equal(t, 5000, cfg.Roads.ProximityRadiusM)
	assert.Equal(t, 80, cfg.Resolve.FuzzyThreshold)
	assert.Equal(t, 26, cfg.Resolve.MinPlaceRank)
	assert.InDelta(t, 1609.34, cfg.Resolve.MaxLinearM, 0.001)
	assert.True(t, cfg.Cache.Save)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	doc, err := yaml.Marshal(map[string]any{
		"search": map[string]any{
			"base_url":     "http://nominatim.internal:8080/search",
			"timeout_secs": 12,
		},
		"roads": map[string]any{
			"host": "db.internal",
			"port": 5432,
		},
		"resolve": map[string]any{
			"fuzzy_threshold": 85,
		},
		"log": map[string]any{
			"level":  "debug",
			"format": "console",
		},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), doc, 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://nominatim.internal:8080/search", cfg.Search.BaseURL)
	assert.Equal(t, 12, cfg.Search.TimeoutSecs)
	assert.Equal(t, "db.internal", cfg.Roads.Host)
	assert.Equal(t, 5432, cfg.Roads.Port)
	assert.Equal(t, 85, cfg.Resolve.FuzzyThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep defaults.
	assert.Equal(t, 26, cfg.Resolve.MinPlaceRank)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level", Format: "json"})
	assert.Error(t, err)
}
