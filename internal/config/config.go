// Package config loads runtime settings from defaults, an optional
// config file, USERSVC_* environment variables and bound CLI flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "USERSVC"

type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	Store  StoreConfig  `mapstructure:"store"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	GRPCAddr string `mapstructure:"grpc_addr"`
	HTTPAddr string `mapstructure:"http_addr"`
	MTLS     bool   `mapstructure:"mtls"`
	Cert     string `mapstructure:"cert"`
	Key      string `mapstructure:"key"`
	CA       string `mapstructure:"ca"`
}

// StoreConfig selects and configures the user store backend.
type StoreConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix"`
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// New returns a viper instance with defaults and environment binding
// in place.  Nested keys map to env vars with underscores, e.g.
// store.redis_addr -> USERSVC_STORE_REDIS_ADDR.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.grpc_addr", "0.0.0.0:9090")
	v.SetDefault("server.http_addr", "0.0.0.0:8080")
	v.SetDefault("server.mtls", false)
	v.SetDefault("server.cert", "")
	v.SetDefault("server.key", "")
	v.SetDefault("server.ca", "")
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.redis_addr", "127.0.0.1:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.key_prefix", "users")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file (when non-empty) into v and decodes the result.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Server.MTLS && (c.Server.Cert == "" || c.Server.Key == "" || c.Server.CA == "") {
		return errors.New("mtls mode requires --cert, --key, and --ca")
	}
	return nil
}
