// Package config loads connection configuration from a config file and the
// environment, and builds the runtime connection manager from it.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/satishbabariya/eloquent-go/internal/debug"
	"github.com/satishbabariya/eloquent-go/runtime/client"
)

// Connection configures one named database connection.
type Connection struct {
	Provider  string `mapstructure:"provider"`
	DSN       string `mapstructure:"dsn"`
	PoolSize  int    `mapstructure:"pool_size"`
	CacheSize int    `mapstructure:"cache_size"`
}

// Config is the top-level configuration.
type Config struct {
	Default     string                `mapstructure:"default"`
	Debug       bool                  `mapstructure:"debug"`
	Connections map[string]Connection `mapstructure:"connections"`
}

// Load reads configuration from the given file (yaml/toml/json, decided by
// extension) after loading a .env file if one exists. ELOQUENT_-prefixed
// environment variables override file values for the top-level settings and
// for any field of a connection the file declares, e.g.
// ELOQUENT_CONNECTIONS_PRIMARY_DSN.
func Load(path string) (*Config, error) {
	// Best effort: a missing .env file is not an error.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ELOQUENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetDefault("default", "default")
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	// Unmarshal only sees env values for explicitly bound keys, so bind the
	// fixed top-level keys plus every field of each declared connection.
	_ = v.BindEnv("default")
	_ = v.BindEnv("debug")
	for name := range v.GetStringMap("connections") {
		for _, field := range []string{"provider", "dsn", "pool_size", "cache_size"} {
			_ = v.BindEnv("connections." + name + "." + field)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return &cfg, nil
}

// Connect initializes debug logging and registers every configured
// connection on a fresh manager.
func (c *Config) Connect() (*client.Manager, error) {
	debug.Init(c.Debug)

	m := client.NewManager()
	for name, conn := range c.Connections {
		_, err := m.Register(name, client.Config{
			Provider:  conn.Provider,
			DSN:       conn.DSN,
			PoolSize:  conn.PoolSize,
			CacheSize: conn.CacheSize,
		})
		if err != nil {
			_ = m.Shutdown()
			return nil, fmt.Errorf("config: connection %q: %w", name, err)
		}
	}
	if c.Default != "" && len(c.Connections) > 0 {
		if _, ok := c.Connections[c.Default]; ok {
			if err := m.SetDefault(c.Default); err != nil {
				_ = m.Shutdown()
				return nil, err
			}
		}
	}
	return m, nil
}
