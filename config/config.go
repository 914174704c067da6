package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	PortPro  PortProConfig  `yaml:"portpro"`
	Sync     SyncConfig     `yaml:"sync"`
	Worker   WorkerConfig   `yaml:"worker"`
	Tracking TrackingConfig `yaml:"tracking"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ConnString builds a pgx connection URL, ssl disabled by default.
func (d DatabaseConfig) ConnString() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.DBName, sslMode)
}

type KafkaConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	LoadSyncedTopicName   string `yaml:"load_synced_topic_name"`
	TrackingConsumerGroup string `yaml:"tracking_consumer_group"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PortProConfig struct {
	BaseURL               string `yaml:"base_url"`
	AccessToken           string `yaml:"access_token"`
	TimeoutSeconds        int    `yaml:"timeout_seconds"`
	RateLimitPerMinute    int    `yaml:"rate_limit_per_minute"`
	BreakerFailures       int    `yaml:"breaker_failures"`
	BreakerTimeoutSeconds int    `yaml:"breaker_timeout_seconds"`
	// UseFake switches to the in-memory client for local runs.
	UseFake bool `yaml:"use_fake"`
}

type SyncConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	DefaultLimit       int `yaml:"default_limit"`
	MaxLimit           int `yaml:"max_limit"`
	MaxPages           int `yaml:"max_pages"`
	MaxDurationSeconds int `yaml:"max_duration_seconds"`
	ErrorDetailsLimit  int `yaml:"error_details_limit"`
	LockTTLSeconds     int `yaml:"lock_ttl_seconds"`

	// Bearer tokens with sync module access.
	AccessTokens []string `yaml:"access_tokens"`
	// AllowAnonymous disables the access check. Local development only.
	AllowAnonymous bool `yaml:"allow_anonymous"`

	SigningKey     string `yaml:"signing_key"`
	NextSigningKey string `yaml:"next_signing_key"`
	// PublicURL is the externally visible cron route URL, the signed "sub" claim.
	PublicURL string `yaml:"public_url"`

	TriggerRateLimitPerMinute int    `yaml:"trigger_rate_limit_per_minute"`
	SwaggerPath               string `yaml:"swagger_path"`
}

type WorkerConfig struct {
	Enabled             bool `yaml:"enabled"`
	PollIntervalSeconds int  `yaml:"poll_interval_seconds"`

	// Scheduling (optional). Defaults: idle 15 minutes, 10 seconds while
	// pages remain, backoff 5/15/30/60 minutes.
	IdleMinSeconds  int `yaml:"idle_min_seconds"`
	IdleMaxSeconds  int `yaml:"idle_max_seconds"`
	ContinueSeconds int `yaml:"continue_seconds"`
	Backoff1Seconds int `yaml:"backoff_1_seconds"`
	Backoff2Seconds int `yaml:"backoff_2_seconds"`
	Backoff3Seconds int `yaml:"backoff_3_seconds"`
	Backoff4Seconds int `yaml:"backoff_4_seconds"`
}

type TrackingConfig struct {
	HTTPAddr        string `yaml:"http_addr"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	SwaggerPath     string `yaml:"swagger_path"`
}

// LoadConfig reads the YAML file, then lets the environment (and a .env file
// when present) override secrets.
func LoadConfig(filename string) (*Config, error) {
	_ = godotenv.Load() // .env может отсутствовать

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	overrideFromEnv(&config)
	return &config, nil
}

func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("PORTPRO_ACCESS_TOKEN"); v != "" {
		cfg.PortPro.AccessToken = v
	}
	if v := os.Getenv("PORTPRO_BASE_URL"); v != "" {
		cfg.PortPro.BaseURL = v
	}
	if v := os.Getenv("SYNC_SIGNING_KEY"); v != "" {
		cfg.Sync.SigningKey = v
	}
	if v := os.Getenv("SYNC_NEXT_SIGNING_KEY"); v != "" {
		cfg.Sync.NextSigningKey = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
}
