package config

import (
	"fmt"
	"time"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Source    SourceConfig    `mapstructure:"source"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Model     ModelConfig     `mapstructure:"model"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Tenants   TenantsConfig   `mapstructure:"tenants"`
	API       APIConfig       `mapstructure:"api"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Events    EventsConfig    `mapstructure:"events"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxConnections  int           `mapstructure:"max_connections"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, sslMode,
	)
}

// SourceConfig controls the alarm history source and the serial completion
// applied before maintenance lookups.
type SourceConfig struct {
	ExcludeDevices []string          `mapstructure:"exclude_devices"`
	SerialMapping  map[string]string `mapstructure:"serial_mapping"`
	QueryTimeout   time.Duration     `mapstructure:"query_timeout"`
	RetryAttempts  int               `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration     `mapstructure:"retry_delay"`
	MaxFailures    int               `mapstructure:"max_failures"`
	BreakerCooloff time.Duration     `mapstructure:"breaker_cooloff"`
}

// DetectorConfig is the text-matching failure policy. The lists are external
// policy, not core logic; defaults carry the known CRAC failure signatures.
type DetectorConfig struct {
	Keywords   []string `mapstructure:"keywords"`
	Exclusions []string `mapstructure:"exclusions"`
}

type ModelConfig struct {
	SeverityThreshold int     `mapstructure:"severity_threshold"`
	RiskThreshold     float64 `mapstructure:"risk_threshold"`
	MaxTimeHours      float64 `mapstructure:"max_time_hours"`
	CurvePoints       int     `mapstructure:"curve_points"`
}

type CacheConfig struct {
	RefreshIntervalMinutes int           `mapstructure:"refresh_interval_minutes"`
	RefreshTimeout         time.Duration `mapstructure:"refresh_timeout"`
	RunImmediately         bool          `mapstructure:"run_immediately"`
}

type SchedulerConfig struct {
	CancelWait time.Duration `mapstructure:"cancel_wait"`
}

// TenantsConfig maps a tenant key to the name variants that identify its
// devices, e.g. a short client code plus the full institutional name.
type TenantsConfig struct {
	Aliases map[string][]string `mapstructure:"aliases"`
}

type APIConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    int           `mapstructure:"rate_limit"`
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type WebSocketConfig struct {
	MaxConnections  int           `mapstructure:"max_connections"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	BroadcastBuffer int           `mapstructure:"broadcast_buffer"`
	ClientBuffer    int           `mapstructure:"client_buffer"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}
