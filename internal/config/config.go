package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/sura-classifier/")
	v.AddConfigPath("$HOME/.sura-classifier")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("SURA_CLASSIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Store defaults
	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.sqlite_path", "./data/classifier.db")
	v.SetDefault("store.mysql_dsn", "")

	// Pattern library defaults
	v.SetDefault("patterns.file", "")

	// Scoring defaults
	v.SetDefault("scoring.global_floor", 0.30)
	v.SetDefault("scoring.thresholds.cotizacion", 0.40)
	v.SetDefault("scoring.thresholds.renovacion", 0.40)
	v.SetDefault("scoring.thresholds.endoso", 0.30)
	v.SetDefault("scoring.epsilon", 0.05)
	v.SetDefault("scoring.saturation_k", 45.0)
	v.SetDefault("scoring.workers", 4)

	// Normalization defaults
	v.SetDefault("normalize.max_excerpt", 280)

	// Attachment defaults
	v.SetDefault("attachment.min_image_bytes", 102400)

	// Archive defaults
	v.SetDefault("archive.dir", "./output")
	v.SetDefault("archive.sniff_content", true)

	// HTTP API defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_address", "0.0.0.0:3000")

	// SMTP intake defaults
	v.SetDefault("intake.enabled", false)
	v.SetDefault("intake.listen_address", "0.0.0.0:2525")
	v.SetDefault("intake.domain", "localhost")
	v.SetDefault("intake.max_message_bytes", 30*1024*1024)
	v.SetDefault("intake.read_timeout", "30s")
	v.SetDefault("intake.write_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
