package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "crac-forecast", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Mode)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 6, cfg.Model.SeverityThreshold)
	assert.Equal(t, 0.8, cfg.Model.RiskThreshold)
	assert.Equal(t, 5000.0, cfg.Model.MaxTimeHours)
	assert.Equal(t, 500, cfg.Model.CurvePoints)
	assert.Equal(t, 60, cfg.Cache.RefreshIntervalMinutes)
	assert.NotEmpty(t, cfg.Detector.Keywords)
	assert.NotEmpty(t, cfg.Detector.Exclusions)
	assert.Contains(t, cfg.Tenants.Aliases, "EAFIT")
}

func TestLoad_DefaultsValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing app name", func(c *Config) { c.App.Name = "" }},
		{"bad mode", func(c *Config) { c.App.Mode = "staging" }},
		{"bad log level", func(c *Config) { c.App.LogLevel = "verbose" }},
		{"missing database host", func(c *Config) { c.Database.Host = "" }},
		{"bad database port", func(c *Config) { c.Database.Port = 0 }},
		{"no detector keywords", func(c *Config) { c.Detector.Keywords = nil }},
		{"risk threshold above one", func(c *Config) { c.Model.RiskThreshold = 1.5 }},
		{"non-positive projection window", func(c *Config) { c.Model.MaxTimeHours = 0 }},
		{"single curve point", func(c *Config) { c.Model.CurvePoints = 1 }},
		{"non-positive refresh interval", func(c *Config) { c.Cache.RefreshIntervalMinutes = 0 }},
		{"max limit below default limit", func(c *Config) { c.API.MaxLimit = 10; c.API.DefaultLimit = 100 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		Name:     "monitoring",
		User:     "forecaster",
		Password: "secret",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "dbname=monitoring")
	assert.Contains(t, dsn, "sslmode=disable")

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}
