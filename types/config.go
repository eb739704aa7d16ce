package types

import (
	"time"
)

type Config struct {
	API    *APIConfig    `yaml:"api" json:"api" validate:"required"`
	Logger *LoggerConfig `yaml:"logger" json:"logger"`
	Sync   *SyncConfig   `yaml:"sync" json:"sync"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"min=0"`
	Retries int           `yaml:"retries" json:"retries" validate:"min=0"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
	File   string `yaml:"file" json:"file"`
}

type SyncConfig struct {
	// OrderPollInterval drives the order-tracking view's refresh.
	OrderPollInterval time.Duration `yaml:"order_poll_interval" json:"order_poll_interval" validate:"min=0"`
	// DeliveredGrace keeps a delivered order visible on the dashboard
	// before its removal write.
	DeliveredGrace time.Duration `yaml:"delivered_grace" json:"delivered_grace" validate:"min=0"`
}
