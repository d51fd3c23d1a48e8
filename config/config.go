package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Elogist  ElogistConfig  `yaml:"elogist"`
	Shop     ShopConfig     `yaml:"shop"`
	Feed     FeedConfig     `yaml:"feed"`
	Sync     SyncConfig     `yaml:"sync"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                        string `yaml:"host"`
	Port                        int    `yaml:"port"`
	OrderStatusChangedTopicName string `yaml:"order_status_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ElogistConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	ProjectID string `yaml:"project_id"`

	// "soap" (default) or "fake" for local runs without the vendor sandbox.
	Mode string `yaml:"mode"`
}

type ShopConfig struct {
	BaseURL        string `yaml:"base_url"`
	ConsumerKey    string `yaml:"consumer_key"`
	ConsumerSecret string `yaml:"consumer_secret"`
}

type FeedConfig struct {
	URL                 string `yaml:"url"`
	Schedule            string `yaml:"schedule"`
	LockTTLSeconds      int    `yaml:"lock_ttl_seconds"`
	ShopWritesPerMinute int    `yaml:"shop_writes_per_minute"`
}

type SyncConfig struct {
	HTTPAddr       string `yaml:"http_addr"`
	WorkerHTTPAddr string `yaml:"worker_http_addr"`

	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	WebhookAPIKey string `yaml:"webhook_api_key"`

	StatusPollIntervalSeconds int    `yaml:"status_poll_interval_seconds"`
	RecordTTLSeconds          int    `yaml:"record_ttl_seconds"`
	LogRetentionDays          int    `yaml:"log_retention_days"`
	LogCleanupSchedule        string `yaml:"log_cleanup_schedule"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
