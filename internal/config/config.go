package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all registry server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int   `mapstructure:"port"`
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"` // upload size cap
}

// DatabaseConfig holds artifact metadata database configuration.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"` // Postgres only
}

// StorageConfig holds blob storage configuration.
type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"` // root for content-addressed blobs
}

// AuthConfig holds publish authentication configuration.
//
// PasswordHash is a bcrypt hash and is preferred; Password is a plaintext
// fallback for local development. If neither is set, publishing is open and a
// warning is logged at startup.
type AuthConfig struct {
	Password     string `mapstructure:"password"`
	PasswordHash string `mapstructure:"password_hash"`
	JWTSecret    string `mapstructure:"jwt_secret"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.max_body_bytes", 100*1024*1024)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./armory.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("storage.data_dir", "./data")
	// Empty defaults so env-only values are seen: viper's Unmarshal only
	// visits keys it already knows about, and AutomaticEnv registers none.
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/armory/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, using defaults
	}

	v.SetEnvPrefix("ARMORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
