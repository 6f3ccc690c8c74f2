package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML config file shape. Log level is a plain
// string there and parsed after merge.
type fileConfig struct {
	ServerURL  string `yaml:"server_url"`
	ChannelURL string `yaml:"channel_url"`
	Token      string `yaml:"token"`
	TokenFile  string `yaml:"token_file"`
	LogFile    string `yaml:"log_file"`
	LogLevel   string `yaml:"log_level"`
}

// mergeFile overlays values from the YAML file at path. A missing file is
// not an error; a malformed one is.
func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.ServerURL != "" {
		c.ServerURL = fc.ServerURL
	}
	if fc.ChannelURL != "" {
		c.ChannelURL = fc.ChannelURL
	}
	if fc.Token != "" {
		c.Token = fc.Token
	}
	if fc.TokenFile != "" {
		c.TokenFile = fc.TokenFile
	}
	if fc.LogFile != "" {
		c.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		c.logLevelName = fc.LogLevel
	}
	return nil
}
