package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/forecaster")
	}

	v.SetEnvPrefix("FORECASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "crac-forecast")
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "monitoring")
	v.SetDefault("database.user", "forecaster")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.ssl_mode", "disable")

	// Source defaults
	v.SetDefault("source.query_timeout", "30s")
	v.SetDefault("source.retry_attempts", 3)
	v.SetDefault("source.retry_delay", "1s")
	v.SetDefault("source.max_failures", 5)
	v.SetDefault("source.breaker_cooloff", "30s")

	// Failure text policy defaults (known CRAC failure signatures)
	v.SetDefault("detector.keywords", []string{
		"Low Superheat Critical",
		"Compressor High Head Condition",
		"Returned from Idle Due To Leak Detected",
		"Compressor Drive Failure",
		"Supply humidity has been too high for too long",
	})
	v.SetDefault("detector.exclusions", []string{
		"cleared", "corrected", "restored", "ok", "normal", "return to normal", "resolved",
	})

	// Model defaults
	v.SetDefault("model.severity_threshold", 6)
	v.SetDefault("model.risk_threshold", 0.8)
	v.SetDefault("model.max_time_hours", 5000)
	v.SetDefault("model.curve_points", 500)

	// Cache defaults
	v.SetDefault("cache.refresh_interval_minutes", 60)
	v.SetDefault("cache.refresh_timeout", "5m")
	v.SetDefault("cache.run_immediately", true)

	// Scheduler defaults
	v.SetDefault("scheduler.cancel_wait", "5s")

	// Tenant alias defaults: short client codes and their institutional names
	v.SetDefault("tenants.aliases", map[string][]string{
		"EAFIT":    {"EAFIT", "UNIVERSIDAD EAFIT"},
		"UNICAUCA": {"UNICAUCA", "UNIVERSIDAD DEL CAUCA"},
		"UTP":      {"UTP", "UNIVERSIDAD TECNOLOGICA DE PEREIRA"},
		"METRO":    {"METRO", "METRO TALLERES", "METRO PCC"},
	})

	// API defaults
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "15s")
	v.SetDefault("api.rate_limit", 100)
	v.SetDefault("api.default_limit", 100)
	v.SetDefault("api.max_limit", 1000)

	// WebSocket defaults
	v.SetDefault("websocket.max_connections", 1000)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.broadcast_buffer", 256)
	v.SetDefault("websocket.client_buffer", 64)

	// Events defaults
	v.SetDefault("events.buffer_size", 100)
}
