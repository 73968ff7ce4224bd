// Package config loads handlepay settings from YAML and the environment.
//
// Sources are tried in order:
//  1. the explicit path passed to Load or MustLoad;
//  2. the CONFIG_PATH environment variable;
//  3. ./handlepay.yaml in the working directory;
//  4. environment variables alone.
//
// Environment variables always override values read from a file.
package config

import (
	"os"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/vitwit/handlepay/types"
	"github.com/vitwit/handlepay/utils"
)

// LocalFile is the file picked up from the working directory.
const LocalFile = "handlepay.yaml"

// MustLoad is Load that panics on error.
func MustLoad(path string) *types.Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration and validates it. Errors carry the
// CONFIG_ERROR code.
func Load(path string) (*types.Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat(LocalFile); err == nil {
			path = LocalFile
		}
	}

	var cfg types.Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, types.WrapError(types.ErrConfigError, err, "config file %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, types.WrapError(types.ErrConfigError, err, "read config %s", path)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "read config from environment")
	}

	if err := utils.ValidateStruct(&cfg); err != nil {
		return nil, types.WrapError(types.ErrConfigError, err, "invalid config")
	}
	return &cfg, nil
}
