// SPDX-License-Identifier: MPL-2.0

// Package environment handles runtime configuration of the utility using Viper.
//
// All settings can be supplied through the environment variables the tool has
// always honored (API_GW_HOST, API_CERT_VERIFY, API_TIMEOUT, VCS_USERNAME) or
// through an optional TOML config file at
// $XDG_CONFIG_HOME/cfs-config-util/config.toml. Flags, when present, take
// precedence over the environment, which takes precedence over the file.
package environment

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"cfs-config-util/internal/issue"
)

const (
	// AppName is the application name, used for the config directory.
	AppName = "cfs-config-util"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"

	// DefaultAPIGatewayHost is the default API gateway hostname on the
	// node management network.
	DefaultAPIGatewayHost = "api-gw-service-nmn.local"
	// DefaultAPITimeout is the default request timeout in seconds.
	DefaultAPITimeout = 60
	// DefaultVCSUsername is the default user for VCS access.
	DefaultVCSUsername = "crayvcs"
)

// Config holds the resolved runtime settings.
type Config struct {
	// APIGatewayHost is the hostname of the API gateway fronting CFS, HSM,
	// and the token service.
	APIGatewayHost string `mapstructure:"api_gw_host" toml:"api_gw_host"`
	// APICertVerify controls TLS certificate verification for gateway requests.
	APICertVerify bool `mapstructure:"api_cert_verify" toml:"api_cert_verify"`
	// APITimeout is the per-request timeout in seconds.
	APITimeout int `mapstructure:"api_timeout" toml:"api_timeout"`
	// VCSUsername is the username used to authenticate to the VCS git server.
	VCSUsername string `mapstructure:"vcs_username" toml:"vcs_username"`
}

// Timeout returns the API timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.APITimeout) * time.Second
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		APIGatewayHost: DefaultAPIGatewayHost,
		APICertVerify:  true,
		APITimeout:     DefaultAPITimeout,
		VCSUsername:    DefaultVCSUsername,
	}
}

// configDirOverride allows tests to redirect the config directory.
var configDirOverride string

// SetConfigDirOverride overrides the config directory. Pass "" to reset.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// ConfigDir returns the configuration directory, following XDG conventions.
// The tool only ships in Linux containers so no other platforms are handled.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}

	return filepath.Join(configDir, AppName), nil
}

// Load resolves the runtime configuration from defaults, the optional config
// file, and the environment.
func Load() (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("api_gw_host", defaults.APIGatewayHost)
	v.SetDefault("api_cert_verify", defaults.APICertVerify)
	v.SetDefault("api_timeout", defaults.APITimeout)
	v.SetDefault("vcs_username", defaults.VCSUsername)

	// Bind the environment variable names the tool has always used rather
	// than prefixed names derived from the keys.
	bindings := map[string]string{
		"api_gw_host":     "API_GW_HOST",
		"api_cert_verify": "API_CERT_VERIFY",
		"api_timeout":     "API_TIMEOUT",
		"vcs_username":    "VCS_USERNAME",
	}
	for key, envVar := range bindings {
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", envVar, err)
		}
	}

	configDir, err := ConfigDir()
	if err == nil {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType(ConfigFileExt)
		v.AddConfigPath(configDir)

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, issue.NewErrorContext().
					WithOperation("load configuration").
					WithResource(filepath.Join(configDir, ConfigFileName+"."+ConfigFileExt)).
					WithSuggestion("Check the TOML syntax of the config file").
					Wrap(err).
					Build()
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("parse configuration").
			WithSuggestion("Check setting types (api_timeout must be an integer)").
			Wrap(err).
			Build()
	}

	return cfg, nil
}

// WriteDefault writes a config file with the built-in defaults to the given
// path, creating parent directories as needed. Fails if the file exists.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	data, err := toml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
