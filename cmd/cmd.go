package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/frahmantamala/meter-fleet/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "meter-fleet",
	Short: "Meter Fleet",
	Long:  `For managing generator meters, their engineers and the telemetry they report.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads config.yml from path. Any key can be overridden from the
// environment with the ENV_ prefix, e.g. ENV_DATABASE_SOURCE; a .env file in
// the working directory is loaded first when present.
func loadConfig(path string) (*internal.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	logger.Setup(logger.Options{
		Env:    cfg.Env,
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File: logger.FileOptions{
			Path:       cfg.Logging.File.Path,
			MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
			MaxBackups: cfg.Logging.File.MaxBackups,
			MaxAgeDays: cfg.Logging.File.MaxAgeDays,
			Compress:   cfg.Logging.File.Compress,
		},
	})

	return &cfg, nil
}

// setDefaults registers every key so environment overrides work even when
// config.yml leaves a section out.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("http_server.port", 8080)
	v.SetDefault("http_server.base_url", "")
	v.SetDefault("http_server.allowed_origins", "")
	v.SetDefault("http_server.openapi_path", "api/openapi.yml")
	v.SetDefault("http_server.read_header_timeout", "5s")
	v.SetDefault("http_server.read_timeout", "15s")
	v.SetDefault("http_server.write_timeout", "60s")
	v.SetDefault("http_server.idle_timeout", "120s")

	v.SetDefault("database.driver", internal.DatabaseDriverPostgres)
	v.SetDefault("database.source", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	v.SetDefault("security.jwt_access_secret", "")
	v.SetDefault("security.jwt_refresh_secret", "")
	v.SetDefault("security.access_token_duration", "15m")
	v.SetDefault("security.refresh_token_duration", "168h")
	v.SetDefault("security.bcrypt_cost", 12)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file.path", "")
	v.SetDefault("logging.file.max_size_mb", 100)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.max_age_days", 28)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("telemetry.rate_per_second", 5)
	v.SetDefault("telemetry.burst", 10)
	v.SetDefault("telemetry.max_page_size", 1000)

	v.SetDefault("reports.ttl", "15m")
	v.SetDefault("reports.default_window", "24h")
	v.SetDefault("reports.janitor_interval", "1m")
	v.SetDefault("reports.max_rows", 50000)

	v.SetDefault("storage.driver", internal.StorageDriverLocal)
	v.SetDefault("storage.local_dir", "var/reports")
	v.SetDefault("storage.s3_bucket", "")
	v.SetDefault("storage.s3_region", "")
	v.SetDefault("storage.s3_prefix", "reports/")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("alarms.sns_topic_arn", "")
	v.SetDefault("alarms.region", "")
	v.SetDefault("alarms.workers", 4)
	v.SetDefault("alarms.queue_size", 100)

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "meters/+/data")
	v.SetDefault("mqtt.client_id", "meter-fleet")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yml")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
