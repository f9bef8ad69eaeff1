// Package config provides centralized configuration for PageCanvas.
package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings holds every tunable the server reads at startup. Values come
// from defaults, an optional pagecanvas.yaml in the working directory, and
// PAGECANVAS_* environment variables, in increasing precedence.
type Settings struct {
	// Server
	Port               string        `mapstructure:"port"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`
	CORSOrigins        []string      `mapstructure:"cors_origins"`

	// Database
	DBDriver string `mapstructure:"db_driver"`
	DBPath   string `mapstructure:"db_path"`

	// Media
	MediaPath string `mapstructure:"media_path"`

	// Data sources
	HTTPTimeout        time.Duration `mapstructure:"http_timeout"`
	MinRefreshInterval time.Duration `mapstructure:"min_refresh_interval"`

	// Builder engine
	PropDebounce time.Duration `mapstructure:"prop_debounce"`

	// Logging
	LogDir   string `mapstructure:"log_dir"`
	LogLevel string `mapstructure:"log_level"`
}

func defaults() map[string]any {
	return map[string]any{
		"port":                 "8080",
		"server_read_timeout":  15 * time.Second,
		"server_write_timeout": 15 * time.Second,
		"server_idle_timeout":  60 * time.Second,
		"cors_origins":         []string{"http://localhost:3000", "http://localhost:5173"},
		"db_driver":            "sqlite3",
		"db_path":              "./data/pagecanvas.db",
		"media_path":           "./data/media",
		"http_timeout":         15 * time.Second,
		"min_refresh_interval": time.Second,
		"prop_debounce":        500 * time.Millisecond,
		"log_dir":              "./log",
		"log_level":            "info",
	}
}

// Load reads configuration from pagecanvas.yaml (if present) and the
// environment, logging any value that differs from its default.
func Load() (*Settings, error) {
	v := viper.New()
	def := defaults()
	for key, value := range def {
		v.SetDefault(key, value)
	}

	v.SetConfigName("pagecanvas")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	v.SetEnvPrefix("PAGECANVAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	for key, defaultValue := range def {
		if current := v.Get(key); v.IsSet(key) && !equalSetting(current, defaultValue) {
			log.Printf("Config override: %s=%v (default: %v)", key, current, defaultValue)
		}
	}

	return &settings, nil
}

func equalSetting(a, b any) bool {
	as, aok := a.([]string)
	bs, bok := b.([]string)
	if aok && bok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return a == b
}
