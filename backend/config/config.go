// Copyright (C) 2025 linguamonkey.app <dev@linguamonkey.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the service runtime parameters.
type Config struct {
	HTTPAddress string         `mapstructure:"http_address"`
	LogLevel    string         `mapstructure:"log_level"`
	DatabaseURL string         `mapstructure:"database_url"`
	RedisAddr   string         `mapstructure:"redis_addr"`
	JWTSecret   string         `mapstructure:"jwt_secret"`
	JWTIssuer   string         `mapstructure:"jwt_issuer"`
	AI          AIConfig       `mapstructure:"ai"`
	Relay       RelayConfig    `mapstructure:"relay"`
	Presence    PresenceConfig `mapstructure:"presence"`
}

// AIConfig describes the external AI service and video-call endpoints.
type AIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	CallBaseURL string        `mapstructure:"call_base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	InternalKey string        `mapstructure:"internal_key"`
}

// RelayConfig holds the relay business constants.
type RelayConfig struct {
	EditWindow  time.Duration `mapstructure:"edit_window"`
	PreKeyFloor int           `mapstructure:"prekey_floor"`
}

// PresenceConfig controls the online/offline TTL.
type PresenceConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

const (
	defaultHTTPAddress = "0.0.0.0:8081"
	defaultLogLevel    = "info"
	defaultDatabaseURL = "postgres://localhost/lingua?sslmode=disable"
	defaultRedisAddr   = "localhost:6379"
	defaultAIBaseURL   = "http://localhost:9090"
	defaultAITimeout   = 30 * time.Second
	defaultEditWindow  = 5 * time.Minute
	defaultPreKeyFloor = 100
	defaultPresenceTTL = 3 * time.Minute
)

// Load reads configuration from the provided file path (if any) and the
// environment. Environment variables are prefixed with LINGUA_ and override
// file values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINGUA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Every key needs a default (empty where none is sensible): viper's
	// Unmarshal only sees environment values for keys it already knows.
	v.SetDefault("http_address", defaultHTTPAddress)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("database_url", defaultDatabaseURL)
	v.SetDefault("redis_addr", defaultRedisAddr)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_issuer", "lingua")
	v.SetDefault("ai.base_url", defaultAIBaseURL)
	v.SetDefault("ai.call_base_url", "")
	v.SetDefault("ai.internal_key", "")
	v.SetDefault("ai.timeout", defaultAITimeout.String())
	v.SetDefault("relay.edit_window", defaultEditWindow.String())
	v.SetDefault("relay.prekey_floor", defaultPreKeyFloor)
	v.SetDefault("presence.ttl", defaultPresenceTTL.String())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Viper leaves durations as strings; normalize them here.
	for key, dst := range map[string]*time.Duration{
		"ai.timeout":        &cfg.AI.Timeout,
		"relay.edit_window": &cfg.Relay.EditWindow,
		"presence.ttl":      &cfg.Presence.TTL,
	} {
		dur, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = dur
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt_secret is required")
	}

	return cfg, nil
}
