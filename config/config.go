// Package config loads library configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all cache library configuration.
type Config struct {
	Cache CacheConfig `mapstructure:"cache"`
	Redis RedisConfig `mapstructure:"redis"`
	Log   LogConfig   `mapstructure:"log"`
}

// CacheConfig selects and sizes the cache backend.
type CacheConfig struct {
	// Backend is one of "memory", "redis" or "tiered".
	Backend string `mapstructure:"backend"`
	// MaxSize bounds the in-process store's entry count.
	MaxSize int `mapstructure:"max_size"`
	// LocalTTL caps how long the tiered backend keeps entries in its
	// in-process front.
	LocalTTL time.Duration `mapstructure:"local_ttl"`
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`

	// Circuit breaker settings for remote cache calls. A zero
	// FailureThreshold disables the breaker.
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("FMP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override with environment variables for sensitive values
	if password := os.Getenv("FMP_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.local_ttl", time.Minute)

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "fmp:")
	v.SetDefault("redis.failure_threshold", 5)
	v.SetDefault("redis.breaker_timeout", 60*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
