// SPDX-License-Identifier: MPL-2.0

package cfs

import (
	"encoding/json"
	"fmt"
	"os"
)

// ReadConfigurationFile loads a configuration from a JSON file, validating
// it against the configuration schema. Field names are interpreted in this
// client's wire format.
func (c *Client) ReadConfigurationFile(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	if err := ValidateConfigurationPayload(data, path); err != nil {
		return nil, err
	}

	cfg, err := c.DecodeConfiguration(data)
	if err != nil {
		return nil, fmt.Errorf("configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// WriteConfigurationFile saves a configuration as JSON. When overwrite is
// false, an existing file at the path is an error.
func (c *Client) WriteConfigurationFile(cfg *Configuration, path string, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("file %q already exists and would be overwritten", path)
		}
		return fmt.Errorf("failed to open configuration file for writing: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c.encodePayload(cfg)); err != nil {
		return fmt.Errorf("failed to write configuration file %q: %w", path, err)
	}
	return nil
}
