// Package config loads service settings from environment variables and an
// optional config file.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Settings struct {
	Listen       string `mapstructure:"listen"`
	Database     string `mapstructure:"database"`
	DefaultLimit int    `mapstructure:"default_limit"`
	MaxLimit     int    `mapstructure:"max_limit"`
	NatsEmbed    bool   `mapstructure:"nats_embed"`
	NatsURL      string `mapstructure:"nats_url"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// Load reads settings with precedence env > file > defaults. Environment
// variables use the STAC_ prefix (STAC_LISTEN, STAC_DATABASE, ...).
func Load(path string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("listen", ":8080")
	v.SetDefault("database", "postgres://localhost:5432/postgis")
	v.SetDefault("default_limit", 10)
	v.SetDefault("max_limit", 10000)
	v.SetDefault("nats_embed", false)
	v.SetDefault("nats_url", "")
	v.SetDefault("otlp_endpoint", "")

	v.SetEnvPrefix("STAC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Default returns the built-in settings, used by tests.
func Default() *Settings {
	s, _ := Load("")
	return s
}
