package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".devpulse"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for devpulse settings.
const envPrefix = "DEVPULSE"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// Load loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file
// path; otherwise the config file is searched in CWD and $HOME.
// A missing config file is not an error; defaults are used.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	return &cfg, nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("data.dir", DefaultDataDir)

	// Secrets default to empty so AutomaticEnv picks them up during
	// Unmarshal even when no config file sets the key.
	viperCfg.SetDefault("github.token", "")
	viperCfg.SetDefault("github.graphql_url", DefaultGitHubGraphQLURL)
	viperCfg.SetDefault("github.organizations", []string{})
	viperCfg.SetDefault("github.since", DefaultFetchSince)

	viperCfg.SetDefault("jira.base_url", "")
	viperCfg.SetDefault("jira.email", "")
	viperCfg.SetDefault("jira.api_token", "")
	viperCfg.SetDefault("jira.since", DefaultFetchSince)

	viperCfg.SetDefault("mapping.threshold", DefaultMappingThreshold)
	viperCfg.SetDefault("mapping.suffixes", DefaultMappingSuffixes)
	viperCfg.SetDefault("mapping.deny_list", DefaultMappingDenyList)

	viperCfg.SetDefault("server.addr", DefaultServerAddr)
	viperCfg.SetDefault("server.admin_api_key", "")
	viperCfg.SetDefault("server.allowed_origins", []string{"*"})
}
