package config

import (
	"errors"
	"fmt"
)

func (c *Config) Validate() error {
	var errs []error

	// App validation
	if c.App.Name == "" {
		errs = append(errs, errors.New("app.name is required"))
	}

	validModes := map[string]bool{"development": true, "production": true, "test": true}
	if !validModes[c.App.Mode] {
		errs = append(errs, fmt.Errorf("app.mode must be one of: development, production, test"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.App.LogLevel] {
		errs = append(errs, fmt.Errorf("app.log_level must be one of: debug, info, warn, error"))
	}

	// Database validation
	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, errors.New("database.port must be between 1 and 65535"))
	}
	if c.Database.Name == "" {
		errs = append(errs, errors.New("database.name is required"))
	}
	if c.Database.MaxConnections <= 0 {
		errs = append(errs, errors.New("database.max_connections must be positive"))
	}

	// Detector validation
	if len(c.Detector.Keywords) == 0 {
		errs = append(errs, errors.New("detector.keywords must not be empty"))
	}

	// Model validation
	if c.Model.SeverityThreshold < 0 {
		errs = append(errs, errors.New("model.severity_threshold must not be negative"))
	}
	if c.Model.RiskThreshold < 0 || c.Model.RiskThreshold > 1 {
		errs = append(errs, errors.New("model.risk_threshold must be between 0 and 1"))
	}
	if c.Model.MaxTimeHours <= 0 {
		errs = append(errs, errors.New("model.max_time_hours must be positive"))
	}
	if c.Model.CurvePoints <= 1 {
		errs = append(errs, errors.New("model.curve_points must be greater than 1"))
	}

	// Cache validation
	if c.Cache.RefreshIntervalMinutes <= 0 {
		errs = append(errs, errors.New("cache.refresh_interval_minutes must be positive"))
	}
	if c.Cache.RefreshTimeout <= 0 {
		errs = append(errs, errors.New("cache.refresh_timeout must be positive"))
	}

	// API validation
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, errors.New("api.port must be between 1 and 65535"))
	}
	if c.API.MaxLimit < c.API.DefaultLimit {
		errs = append(errs, errors.New("api.max_limit must be >= api.default_limit"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %v", errs)
	}

	return nil
}
