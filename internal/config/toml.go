// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/exprparms/internal/expr"
	"github.com/verte-zerg/exprparms/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Dialog  DialogConfig  `toml:"dialog"`
	Storage StorageConfig `toml:"storage"`
}

// DialogConfig maps dialog-related settings.
type DialogConfig struct {
	Expression *string  `toml:"expression"`
	Step       *float64 `toml:"step"`
	CoarseStep *float64 `toml:"coarse-step"`
}

// StorageConfig maps file locations.
type StorageConfig struct {
	History *string `toml:"history"`
	Scene   *string `toml:"scene"`
}

// Defaults returns the built-in configuration.
func Defaults() model.Config {
	return model.Config{
		Expression:  expr.DefaultExpression,
		Step:        0.25,
		CoarseStep:  1,
		HistoryPath: DefaultHistoryPath(),
		ScenePath:   DefaultScenePath(),
	}
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
