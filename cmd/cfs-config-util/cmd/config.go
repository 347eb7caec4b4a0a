// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"cfs-config-util/internal/environment"
)

var (
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Manage the cfs-config-util config file",
		Long: `Manage the cfs-config-util config file.

Settings may be supplied through the environment (API_GW_HOST,
API_CERT_VERIFY, API_TIMEOUT, VCS_USERNAME) or through a TOML config
file at $XDG_CONFIG_HOME/cfs-config-util/config.toml. The environment
takes precedence over the file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Create a config file with the default settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}
			if err := environment.WriteDefault(path); err != nil {
				return err
			}
			fmt.Printf("Created default configuration at %s\n", path)
			return nil
		},
	}

	configPathCmd = &cobra.Command{
		Use:   "path",
		Short: "Show the config file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	}
)

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// configFilePath returns the path of the TOML config file.
func configFilePath() (string, error) {
	dir, err := environment.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, environment.ConfigFileName+"."+environment.ConfigFileExt), nil
}
