package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Gateway   GatewaySettings   `mapstructure:"gateway"`
	EventBus  EventBusSettings  `mapstructure:"event_bus"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the distributed cache connection and key prefixes.
type RedisSettings struct {
	Host             string `mapstructure:"host"`
	Port             int    `mapstructure:"port"`
	DB               int    `mapstructure:"db"`
	Password         string `mapstructure:"password"`
	TLSEnabled       bool   `mapstructure:"tls_enabled"`
	RevocationPrefix string `mapstructure:"revocation_prefix"`
	RateLimitPrefix  string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the lifecycle event producer.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

type JWTSettings struct {
	Secret          string        `mapstructure:"secret"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// RateLimitSettings configures the fixed-window limiter. Limits are keyed by
// role; unknown roles fall back to DefaultLimit.
type RateLimitSettings struct {
	WindowDuration time.Duration  `mapstructure:"window_duration"`
	DefaultLimit   int            `mapstructure:"default_limit"`
	RoleLimits     map[string]int `mapstructure:"role_limits"`
}

// LimitForRole resolves the request quota for the supplied role.
func (s RateLimitSettings) LimitForRole(role string) int {
	if limit, ok := s.RoleLimits[role]; ok && limit > 0 {
		return limit
	}
	if s.DefaultLimit > 0 {
		return s.DefaultLimit
	}
	return 20
}

// GatewaySettings configures the real-time WebSocket gateway.
type GatewaySettings struct {
	LivenessInterval time.Duration `mapstructure:"liveness_interval"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	SendBuffer       int           `mapstructure:"send_buffer"`
}

// EventBusSettings configures the in-process event bus.
type EventBusSettings struct {
	HistorySize      int `mapstructure:"history_size"`
	SubscriberBuffer int `mapstructure:"subscriber_buffer"`
}

type TelemetrySettings struct {
	MetricsPort  int     `mapstructure:"metrics_port"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("GATEWAY")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.revocation_prefix",
		"redis.rate_limit_prefix",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"jwt.secret",
		"jwt.issuer",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"rate_limit.window_duration",
		"rate_limit.default_limit",
		"gateway.liveness_interval",
		"gateway.write_timeout",
		"gateway.send_buffer",
		"event_bus.history_size",
		"event_bus.subscriber_buffer",
		"telemetry.metrics_port",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "platform-gateway")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "gateway")
	v.SetDefault("postgres.password", "gateway_password")
	v.SetDefault("postgres.database", "gateway")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.revocation_prefix", "revoked_token")
	v.SetDefault("redis.rate_limit_prefix", "ratelimit")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "gateway")
	v.SetDefault("kafka.async", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "platform-gateway")
	v.SetDefault("jwt.access_token_ttl", "30m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.default_limit", 20)
	v.SetDefault("rate_limit.role_limits", map[string]int{
		"admin": 1000,
		"user":  100,
		"guest": 20,
	})

	v.SetDefault("gateway.liveness_interval", "30s")
	v.SetDefault("gateway.write_timeout", "10s")
	v.SetDefault("gateway.send_buffer", 64)

	v.SetDefault("event_bus.history_size", 100)
	v.SetDefault("event_bus.subscriber_buffer", 100)

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "platform-gateway")
	v.SetDefault("telemetry.sampling_rate", 1.0)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "GATEWAY_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
