package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vantutran2k1/elements/pkg/logger"
)

const envPrefix = "ELEMENTS"

type APIConfig struct {
	Port       string `mapstructure:"port"`
	Metrics    string `mapstructure:"metrics"`
	Pprof      bool   `mapstructure:"pprof"`
	QueryParam string `mapstructure:"query_param"`
}

type StoreConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	CreateSchema bool   `mapstructure:"create_schema"`
	// UniqueType makes type unique across all elements, like name. It is off
	// by default, so several elements may share a classification such as
	// TEST; enable it for deployments that need store-wide unique types.
	UniqueType   bool   `mapstructure:"unique_type"`
}

type RedisConfig struct {
	Address string        `mapstructure:"address"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Store   StoreConfig   `mapstructure:"store"`
	Redis   RedisConfig   `mapstructure:"redis"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Log     logger.Config `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", ":8080")
	v.SetDefault("api.metrics", ":9090")
	v.SetDefault("api.pprof", false)
	v.SetDefault("api.query_param", "q")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "elements.db")
	v.SetDefault("store.create_schema", true)
	v.SetDefault("store.unique_type", false)

	v.SetDefault("redis.address", "")
	v.SetDefault("redis.ttl", 30*time.Second)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "elements.events")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.add_source", false)

	v.SetDefault("tracing.endpoint", "")
}

// loadConfig reads configFile if it exists, then lets ELEMENTS_* environment
// variables override any key (api.port -> ELEMENTS_API_PORT).
func loadConfig(configFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configFile)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			slog.Info("config file not found, using defaults and env vars", "file", configFile)
		} else {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}

	if c.API.QueryParam == "" {
		return errors.New("api.query_param must not be empty")
	}
	return nil
}
