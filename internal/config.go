package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"http_server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Reports   ReportsConfig   `mapstructure:"reports"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Alarms    AlarmsConfig    `mapstructure:"alarms"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	OpenAPIPath       string        `mapstructure:"openapi_path"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Source          string        `mapstructure:"source"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type SecurityConfig struct {
	JWTAccessSecret      string        `mapstructure:"jwt_access_secret"`
	JWTRefreshSecret     string        `mapstructure:"jwt_refresh_secret"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
	BCryptCost           int           `mapstructure:"bcrypt_cost"`
}

type LoggingConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   LogFileConfig `mapstructure:"file"`
}

type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type TelemetryConfig struct {
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	Burst         int     `mapstructure:"burst"`
	MaxPageSize   int     `mapstructure:"max_page_size"`
}

type ReportsConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	DefaultWindow   time.Duration `mapstructure:"default_window"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
	MaxRows         int           `mapstructure:"max_rows"`
}

const (
	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type StorageConfig struct {
	Driver   string `mapstructure:"driver"`
	LocalDir string `mapstructure:"local_dir"`
	S3Bucket string `mapstructure:"s3_bucket"`
	S3Region string `mapstructure:"s3_region"`
	S3Prefix string `mapstructure:"s3_prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type AlarmsConfig struct {
	SNSTopicARN string `mapstructure:"sns_topic_arn"`
	Region      string `mapstructure:"region"`
	Workers     int    `mapstructure:"workers"`
	QueueSize   int    `mapstructure:"queue_size"`
}

type MQTTConfig struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	QoS      byte   `mapstructure:"qos"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	validators := []struct {
		name string
		fn   func() error
	}{
		{"server", c.Server.Validate},
		{"database", c.Database.Validate},
		{"security", c.Security.Validate},
		{"logging", c.Logging.Validate},
		{"telemetry", c.Telemetry.Validate},
		{"reports", c.Reports.Validate},
		{"storage", c.Storage.Validate},
		{"alarms", c.Alarms.Validate},
	}
	for _, v := range validators {
		if err := v.fn(); err != nil {
			errs = append(errs, fmt.Sprintf("%s config: %v", v.name, err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case DatabaseDriverPostgres, DatabaseDriverSQLite:
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	if c.Source == "" {
		return errors.New("source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTAccessSecret) < 32 {
		return errors.New("jwt_access_secret must be at least 32 characters")
	}
	if len(c.JWTRefreshSecret) < 32 {
		return errors.New("jwt_refresh_secret must be at least 32 characters")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("access and refresh secrets must differ")
	}
	if c.AccessTokenDuration < time.Minute {
		return errors.New("access_token_duration must be at least 1m")
	}
	if c.RefreshTokenDuration <= c.AccessTokenDuration {
		return errors.New("refresh_token_duration must exceed access_token_duration")
	}
	if c.BCryptCost < 4 || c.BCryptCost > 15 {
		return errors.New("bcrypt_cost must be between 4 and 15")
	}
	return nil
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported level %q", c.Level)
	}
	switch c.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	return nil
}

func (c *TelemetryConfig) Validate() error {
	if c.RatePerSecond < 0 {
		return errors.New("rate_per_second cannot be negative")
	}
	if c.RatePerSecond > 0 && c.Burst < 1 {
		return errors.New("burst must be at least 1 when rate limiting is enabled")
	}
	if c.MaxPageSize < 1 {
		return errors.New("max_page_size must be positive")
	}
	return nil
}

func (c *ReportsConfig) Validate() error {
	if c.TTL <= 0 {
		return errors.New("ttl must be positive")
	}
	if c.DefaultWindow <= 0 {
		return errors.New("default_window must be positive")
	}
	if c.MaxRows < 1 {
		return errors.New("max_rows must be positive")
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	switch c.Driver {
	case StorageDriverLocal:
		if c.LocalDir == "" {
			return errors.New("local_dir is required for local storage")
		}
	case StorageDriverS3:
		if c.S3Bucket == "" || c.S3Region == "" {
			return errors.New("s3_bucket and s3_region are required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported driver %q", c.Driver)
	}
	return nil
}

func (c *AlarmsConfig) Validate() error {
	if c.SNSTopicARN != "" && c.Region == "" {
		return errors.New("region is required when sns_topic_arn is set")
	}
	if c.Workers < 1 || c.QueueSize < 1 {
		return errors.New("workers and queue_size must be positive")
	}
	return nil
}
