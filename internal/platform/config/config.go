package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Payments PaymentsConfig `mapstructure:"payments"`
	Carrier  CarrierConfig  `mapstructure:"carrier"`
	Webhooks WebhooksConfig `mapstructure:"webhooks"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	// RateLimits overrides per-minute limits by route family (payment_webhook, carrier_callback, admin).
	RateLimits map[string]int `mapstructure:"rate_limits"`
}

type DatabaseConfig struct {
	URL            string `mapstructure:"url"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret         string        `mapstructure:"secret"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type PaymentsConfig struct {
	// ReferencePrefix is the reserved prefix every externalReference issued by us carries.
	ReferencePrefix string `mapstructure:"reference_prefix"`
	WebhookToken    string `mapstructure:"webhook_token"`
	Provider        string `mapstructure:"provider"`
}

type CarrierConfig struct {
	CallbackTokenHash string `mapstructure:"callback_token_hash"`
}

type WebhooksConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	Source         string        `mapstructure:"source"`
	BatchSize      int           `mapstructure:"batch_size"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Interval       time.Duration `mapstructure:"interval"`
}

type TrackingConfig struct {
	RequestsPerMinute     int           `mapstructure:"requests_per_minute"`
	ViewRequestsPerMinute int           `mapstructure:"view_requests_per_minute"`
	MaxMisses             int           `mapstructure:"max_misses"`
	MissWindow            time.Duration `mapstructure:"miss_window"`
	BlockDuration         time.Duration `mapstructure:"block_duration"`
	TrustedProxyHeaders   []string      `mapstructure:"trusted_proxy_headers"`
	TrustedProxies        []string      `mapstructure:"trusted_proxies"`
}

type SecretsConfig struct {
	Key string `mapstructure:"key"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// Default returns a fully populated configuration. Load starts from these values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			URL:            "file:data/confix.db",
			MaxConnections: 10,
		},
		JWT: JWTConfig{
			AccessTokenTTL: 12 * time.Hour,
		},
		Payments: PaymentsConfig{
			ReferencePrefix: "confix_",
			Provider:        "asaas",
		},
		Webhooks: WebhooksConfig{
			Timeout:        10 * time.Second,
			MaxConcurrency: 8,
			Source:         "confix",
			BatchSize:      10,
			RetryDelay:     time.Second,
			MaxAttempts:    5,
			InitialBackoff: time.Minute,
			MaxBackoff:     time.Hour,
			Interval:       5 * time.Minute,
		},
		Tracking: TrackingConfig{
			RequestsPerMinute:     30,
			ViewRequestsPerMinute: 60,
			MaxMisses:             20,
			MissWindow:            10 * time.Minute,
			BlockDuration:         time.Hour,
			TrustedProxyHeaders:   []string{"X-Forwarded-For", "X-Real-IP", "CF-Connecting-IP"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.max_connections", d.Database.MaxConnections)

	v.SetDefault("jwt.secret", d.JWT.Secret)
	v.SetDefault("jwt.access_token_ttl", d.JWT.AccessTokenTTL)

	v.SetDefault("payments.reference_prefix", d.Payments.ReferencePrefix)
	v.SetDefault("payments.webhook_token", d.Payments.WebhookToken)
	v.SetDefault("payments.provider", d.Payments.Provider)

	v.SetDefault("carrier.callback_token_hash", d.Carrier.CallbackTokenHash)

	v.SetDefault("webhooks.timeout", d.Webhooks.Timeout)
	v.SetDefault("webhooks.max_concurrency", d.Webhooks.MaxConcurrency)
	v.SetDefault("webhooks.source", d.Webhooks.Source)
	v.SetDefault("webhooks.batch_size", d.Webhooks.BatchSize)
	v.SetDefault("webhooks.retry_delay", d.Webhooks.RetryDelay)
	v.SetDefault("webhooks.max_attempts", d.Webhooks.MaxAttempts)
	v.SetDefault("webhooks.initial_backoff", d.Webhooks.InitialBackoff)
	v.SetDefault("webhooks.max_backoff", d.Webhooks.MaxBackoff)
	v.SetDefault("webhooks.interval", d.Webhooks.Interval)

	v.SetDefault("tracking.requests_per_minute", d.Tracking.RequestsPerMinute)
	v.SetDefault("tracking.view_requests_per_minute", d.Tracking.ViewRequestsPerMinute)
	v.SetDefault("tracking.max_misses", d.Tracking.MaxMisses)
	v.SetDefault("tracking.miss_window", d.Tracking.MissWindow)
	v.SetDefault("tracking.block_duration", d.Tracking.BlockDuration)
	v.SetDefault("tracking.trusted_proxy_headers", d.Tracking.TrustedProxyHeaders)
	v.SetDefault("tracking.trusted_proxies", d.Tracking.TrustedProxies)

	v.SetDefault("secrets.key", d.Secrets.Key)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.file_path", d.Logging.FilePath)
}
