// Package config holds the participant configuration and its loader.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Defaults per RFC 6295. The data port is always the control port plus one.
const (
	DefaultControlPort = 5004
	DefaultName        = "mt32-pi"
)

// Config stores all parameters for a participant run. Values come from
// defaults, an optional config file, and APPLEMIDI_* environment variables,
// in increasing priority.
type Config struct {
	ControlPort int    `mapstructure:"control_port"`
	Name        string `mapstructure:"name"` // advertised in accepted invitations
	Debug       bool   `mapstructure:"debug"`
}

// MIDIPort returns the data port paired with the control port.
func (c *Config) MIDIPort() int {
	return c.ControlPort + 1
}

// Load builds a Config. path may be empty, in which case only defaults and
// environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("control_port", DefaultControlPort)
	v.SetDefault("name", DefaultName)
	v.SetDefault("debug", false)

	v.SetEnvPrefix("APPLEMIDI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.ControlPort < 1 || cfg.ControlPort > 65534 {
		return nil, fmt.Errorf("invalid control port %d (need 1~65534, data port is control+1)", cfg.ControlPort)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("participant name must not be empty")
	}

	return &cfg, nil
}
