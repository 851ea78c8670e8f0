package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/redis/redisinsight-azure-auth/pkg/logging"
)

const (
	userConfigDir  = ".config/redisinsight-azure"
	configFileName = "config.yaml"
)

// osUserHomeDir is replaced in tests.
var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigPathOrPanic returns ~/.config/redisinsight-azure.
func GetDefaultConfigPathOrPanic() string {
	homeDir, err := osUserHomeDir()
	if err != nil {
		panic(fmt.Errorf("could not determine user config directory: %w", err))
	}

	return filepath.Join(homeDir, userConfigDir)
}

// LoadConfig loads configuration from a single specified directory and applies
// environment overrides. The result is not validated.
func LoadConfig(configPath string) (Config, error) {
	configFilePath := filepath.Join(configPath, configFileName)
	config := Default()

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("Config", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		logging.Error("Config", err, "Error loading config.yaml from %s", configFilePath)
		return Config{}, err
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("error loading config from %s: %w", configFilePath, err)
		}
		logging.Info("Config", "Loaded configuration from %s", configFilePath)
	}

	if err := ApplyEnvironment(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// ApplyEnvironment overrides fields of config with any REDISAUTH_* variables that are set.
func ApplyEnvironment(config *Config) error {
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("error applying environment overrides: %w", err)
	}
	return nil
}
