package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	CAN          CANConfig          `mapstructure:"can"`
	BMS          BMSConfig          `mapstructure:"bms"`
	Log          LogConfig          `mapstructure:"log"`
	MessageQueue MessageQueueConfig `mapstructure:"message_queue"`
}

// ServerConfig is the Modbus-TCP listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// CANConfig selects the bus interface and the ingest queue depth.
type CANConfig struct {
	Interface  string `mapstructure:"interface"`
	QueueDepth int    `mapstructure:"queue_depth"`
}

// BMSConfig overrides the staleness windows, milliseconds. Zero keeps the
// per-frame default (three nominal periods).
type BMSConfig struct {
	NodeTimeoutMs  int64            `mapstructure:"node_timeout_ms"`
	FrameTimeoutMs map[string]int64 `mapstructure:"frame_timeout_ms"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

type MessageQueueConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Type     string         `mapstructure:"type"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

type RabbitMQConfig struct {
	URL         string `mapstructure:"url"`
	VirtualHost string `mapstructure:"virtual_host"`
	Exchange    string `mapstructure:"exchange"`
	RoutingKey  string `mapstructure:"routing_key"`
	QueueName   string `mapstructure:"queue_name"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 502)
	viper.SetDefault("can.interface", "can0")
	viper.SetDefault("can.queue_depth", 256)
	viper.SetDefault("log.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
