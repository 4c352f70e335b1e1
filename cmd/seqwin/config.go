package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the seqwin configuration file (~/.config/seqwin/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	ContextStart     *int64 `yaml:"context_start"`
	ContextLength    *int64 `yaml:"context_length"`
	PaddingTrainable *bool  `yaml:"padding_trainable"`

	Backend string `yaml:"backend"`
	Workers *int64 `yaml:"workers"`
	DType   string `yaml:"dtype"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "seqwin", "config.yaml")
}

// loadConfig reads the config file at path, or the default location when
// path is empty.  A missing file yields a zero Config.
func loadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = configPath()
	}
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// applyLoggingConfig applies config file defaults to the logging flags when
// they were not explicitly set.
func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

func applyWindowConfig(c *cli.Command, cfg Config) {
	if cfg.ContextStart != nil && !c.IsSet("context-start") {
		contextStart = *cfg.ContextStart
	}
	if cfg.ContextLength != nil && !c.IsSet("context-length") {
		contextLength = *cfg.ContextLength
	}
	if cfg.PaddingTrainable != nil && !c.IsSet("trainable") {
		paddingTrainable = *cfg.PaddingTrainable
	}
}

func applyBackendConfig(c *cli.Command, cfg Config) {
	if cfg.Backend != "" && !c.IsSet("backend") {
		backend = cfg.Backend
	}
	if cfg.Workers != nil && !c.IsSet("workers") {
		workers = *cfg.Workers
	}
}

func applyDTypeConfig(c *cli.Command, cfg Config) {
	if cfg.DType != "" && !c.IsSet("dtype") {
		dtype = cfg.DType
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}
