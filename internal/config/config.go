package config

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Logging    LoggingConfig
	Tracking   TrackingConfig
	Automation AutomationConfig
	RateLimit  RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port                int `mapstructure:"port"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
}

type DatabaseConfig struct {
	MongoDB MongoDBConfig
	Redis   RedisConfig
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TrackingConfig struct {
	// IdentifiedTTLSeconds bounds the Redis idempotency key that suppresses
	// duplicate identification events from tracker retries.
	IdentifiedTTLSeconds int  `mapstructure:"identified_ttl_seconds"`
	AutoStitchEnabled    bool `mapstructure:"auto_stitch_enabled"`
	// BackendURL is baked into the served tracker script. Empty means the
	// script talks to the origin it was loaded from.
	BackendURL string `mapstructure:"backend_url"`
}

type AutomationConfig struct {
	WebhookTimeoutSeconds int `mapstructure:"webhook_timeout_seconds"`
	ResponseBodyCapBytes  int `mapstructure:"response_body_cap_bytes"`
	DispatchConcurrency   int `mapstructure:"dispatch_concurrency"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
