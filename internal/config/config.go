// Package config defines the configuration for the migration engine.
//
// Configuration is organized into logical sections (Server, Kaltura,
// Migration) loaded from a yaml file and KM_-prefixed environment
// variables via viper, with defaults applied through struct tags.
package config

import (
	"fmt"
	"strings"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
)

type Server struct {
	// ServerMode is "prod" or "dev".
	ServerMode string `mapstructure:"mode" default:"dev" debugmap:"visible"`
	HTTPPort   int    `mapstructure:"http_port" default:"8000" debugmap:"visible"`
}

type Kaltura struct {
	APIURL      string `mapstructure:"api_url" default:"https://api.cast.switch.ch" debugmap:"visible"`
	PartnerID   int64  `mapstructure:"partner_id" debugmap:"visible"`
	AdminSecret string `mapstructure:"admin_secret" debugmap:"hidden"`
	UserID      string `mapstructure:"user_id" debugmap:"visible"`
	// UIConfID is the player configuration used in generated embeds;
	// validated against the remote list at run start.
	UIConfID int64 `mapstructure:"uiconf_id" debugmap:"visible"`
	// KafURI is the Kaltura application framework base used by the
	// anchor-style embed codes.
	KafURI string `mapstructure:"kaf_uri" debugmap:"visible"`
	// MediaSpaceURL is where channel links point after migration.
	MediaSpaceURL string `mapstructure:"mediaspace_url" default:"https://mediaspace.cast.switch.ch" debugmap:"visible"`
}

type Migration struct {
	// DataPath is the engine database location; empty means in-memory.
	DataPath string `mapstructure:"data_path" debugmap:"visible"`
	// Hosts is the legacy video host allow-list; empty uses the
	// built-in SWITCH hosts.
	Hosts []string `mapstructure:"hosts" debugmap:"visible"`
	// RootCategory is the materialized path of the channels root under
	// which per-module categories are reconciled.
	RootCategory string `mapstructure:"root_category" default:"Moodle>site>channels" debugmap:"visible"`
	// EmbedStyle is "script" or "link".
	EmbedStyle string `mapstructure:"embed_style" default:"link" debugmap:"visible"`
}

type Config struct {
	Server    Server    `mapstructure:"server"`
	Kaltura   Kaltura   `mapstructure:"kaltura"`
	Migration Migration `mapstructure:"migration"`
	LogLevel  string    `mapstructure:"log_level" default:"info" debugmap:"visible"`
	LogFormat string    `mapstructure:"log_format" default:"console" debugmap:"visible"`
}

// Load reads configuration from the given file (optional) and the
// environment, then applies defaults to whatever is still zero.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}
	return cfg, nil
}

// DebugMap returns the loggable configuration values, masking fields
// tagged as hidden.
func (c *Config) DebugMap() map[string]any {
	return map[string]any{
		"server": map[string]any{
			"mode":      c.Server.ServerMode,
			"http_port": c.Server.HTTPPort,
		},
		"kaltura": map[string]any{
			"api_url":        c.Kaltura.APIURL,
			"partner_id":     c.Kaltura.PartnerID,
			"admin_secret":   "<hidden>",
			"user_id":        c.Kaltura.UserID,
			"uiconf_id":      c.Kaltura.UIConfID,
			"kaf_uri":        c.Kaltura.KafURI,
			"mediaspace_url": c.Kaltura.MediaSpaceURL,
		},
		"migration": map[string]any{
			"data_path":     c.Migration.DataPath,
			"hosts":         c.Migration.Hosts,
			"root_category": c.Migration.RootCategory,
			"embed_style":   c.Migration.EmbedStyle,
		},
		"log_level":  c.LogLevel,
		"log_format": c.LogFormat,
	}
}
