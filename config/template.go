package config

import (
	"fmt"
	"io"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultConfig returns the configuration as it is before any file or
// environment variable is applied.
func DefaultConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}
	return &cfg, nil
}

// WriteTemplate writes cfg as a YAML document that LoadConfig accepts through
// CONFIG_FILE. Secrets are blanked.
func WriteTemplate(w io.Writer, cfg *Config) error {
	out := *cfg
	out.Database.Password = ""
	out.Redis.Password = ""

	if _, err := fmt.Fprintf(w, "# iRail occupancy API configuration (%s)\n", out.Server.Environment); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("failed to encode config template: %w", err)
	}
	return enc.Close()
}
