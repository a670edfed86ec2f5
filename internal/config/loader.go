package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func bindEnvVariables() {
	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracking.backend_url", "TRACKING_BACKEND_URL")

	viper.BindEnv("automation.webhook_timeout_seconds", "AUTOMATION_WEBHOOK_TIMEOUT_SECONDS")
	viper.BindEnv("automation.response_body_cap_bytes", "AUTOMATION_RESPONSE_BODY_CAP_BYTES")
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout_seconds", 15)
	viper.SetDefault("server.write_timeout_seconds", 15)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("rate_limit.rps", 25.0)
	viper.SetDefault("rate_limit.burst", 50)
	viper.SetDefault("rate_limit.cleanup_interval", 300)
	viper.SetDefault("rate_limit.max_age", 600)
	viper.SetDefault("tracking.identified_ttl_seconds", 86400)
	viper.SetDefault("tracking.auto_stitch_enabled", true)
	viper.SetDefault("automation.webhook_timeout_seconds", 10)
	viper.SetDefault("automation.response_body_cap_bytes", 4096)
	viper.SetDefault("automation.dispatch_concurrency", 8)
}
