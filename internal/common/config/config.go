// internal/common/config/config.go
package config

import (
	"strings"
	"time"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	API     APIConfig     `mapstructure:"api"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment" validate:"oneof=development production"`
}

// APIConfig points the client at the backend. In development requests go
// through ProxyURL when it is set; production always talks to BaseURL.
type APIConfig struct {
	BaseURL       string `mapstructure:"base_url" validate:"required,url"`
	ProxyURL      string `mapstructure:"proxy_url" validate:"omitempty,url"`
	Timeout       int    `mapstructure:"timeout" validate:"gt=0"`        // milliseconds
	UploadTimeout int    `mapstructure:"upload_timeout" validate:"gt=0"` // milliseconds
}

// AuthConfig holds the opaque bearer token, if any.
type AuthConfig struct {
	Token string `mapstructure:"token"`
}

type CacheConfig struct {
	StaleTime int         `mapstructure:"stale_time" validate:"gte=0"` // milliseconds
	Redis     RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	TTL      int    `mapstructure:"ttl" validate:"gte=0"` // seconds
}

type RetryConfig struct {
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	BaseDelay  int `mapstructure:"base_delay" validate:"gt=0"` // milliseconds
	MaxJitter  int `mapstructure:"max_jitter" validate:"gte=0"` // milliseconds
}

type UploadConfig struct {
	MaxBytes      int64 `mapstructure:"max_bytes" validate:"gt=0"`
	MaxWidth      int   `mapstructure:"max_width" validate:"gt=0"`
	CompressAbove int64 `mapstructure:"compress_above" validate:"gt=0"`
	Quality       int   `mapstructure:"quality" validate:"gte=1,lte=100"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

// ResolveBaseURL returns the address requests should be sent to.
func (c *Config) ResolveBaseURL() string {
	if c.IsDevelopment() && strings.TrimSpace(c.API.ProxyURL) != "" {
		return c.API.ProxyURL
	}
	return c.API.BaseURL
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == EnvDevelopment
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
