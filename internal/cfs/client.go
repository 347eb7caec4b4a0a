// SPDX-License-Identifier: MPL-2.0

// Package cfs is a client library for the Configuration Framework Service.
//
// Both the v2 and v3 APIs are supported. They expose the same model but
// disagree on wire field names (v2 uses camelCase, v3 snake_case) and on
// listing semantics (v3 paginates).
package cfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"cfs-config-util/internal/gateway"
)

// Version selects the CFS API version.
type Version string

const (
	// V2 is the cfs/v2 API.
	V2 Version = "v2"
	// V3 is the cfs/v3 API.
	V3 Version = "v3"

	// v3PageLimit is the page size used for paginated v3 component listings.
	v3PageLimit = 100
)

// ParseVersion validates a CFS API version string. An empty string selects
// the latest supported version.
func ParseVersion(s string) (Version, error) {
	switch s {
	case "":
		return V3, nil
	case string(V2):
		return V2, nil
	case string(V3):
		return V3, nil
	}
	return "", fmt.Errorf("invalid CFS API version %q: must be %q or %q", s, V2, V3)
}

// servicePath returns the gateway service path for the version.
func (v Version) servicePath() string {
	return "cfs/" + string(v) + "/"
}

// Component is the CFS view of a managed node.
type Component struct {
	ID                  string
	Enabled             bool
	DesiredConfig       string
	ConfigurationStatus string
	ErrorCount          int
}

// ComponentUpdate describes the fields to change on a CFS component. Nil
// pointer fields and false booleans are left untouched.
type ComponentUpdate struct {
	// DesiredConfig sets the component's desired configuration name.
	DesiredConfig *string
	// ClearState clears the component's recorded configuration state.
	ClearState bool
	// ClearError resets the component's error count to zero.
	ClearError bool
	// Enabled sets whether CFS acts on the component.
	Enabled *bool
}

// isZero reports whether the update would change nothing.
func (u ComponentUpdate) isZero() bool {
	return u.DesiredConfig == nil && !u.ClearState && !u.ClearError && u.Enabled == nil
}

// ComponentQuerier supplies component xnames for an HSM query; implemented
// by hsm.Client.
type ComponentQuerier interface {
	ComponentXNames(ctx context.Context, params map[string]string) ([]string, error)
}

// Client talks to one version of the CFS API.
type Client struct {
	gw      *gateway.Client
	version Version
	logger  *log.Logger
}

// NewClient creates a CFS client for the given gateway host and API version.
func NewClient(httpClient *http.Client, host string, version Version, timeout time.Duration, logger *log.Logger) *Client {
	return &Client{
		gw:      gateway.NewClient(httpClient, host, version.servicePath(), timeout, logger),
		version: version,
		logger:  logger,
	}
}

// NewClientWithGateway wraps an existing gateway client. Used by tests.
func NewClientWithGateway(gw *gateway.Client, version Version, logger *log.Logger) *Client {
	return &Client{gw: gw, version: version, logger: logger}
}

// Version returns the API version this client speaks.
func (c *Client) Version() Version {
	return c.version
}

// --- wire codecs ---

type wireLayerV2 struct {
	Name     string `json:"name,omitempty"`
	CloneURL string `json:"cloneUrl,omitempty"`
	Commit   string `json:"commit,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Playbook string `json:"playbook,omitempty"`
}

type wireLayerV3 struct {
	Name     string `json:"name,omitempty"`
	CloneURL string `json:"clone_url,omitempty"`
	Commit   string `json:"commit,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Playbook string `json:"playbook,omitempty"`
}

func (c *Client) layersToWire(layers []Layer) any {
	if c.version == V2 {
		wire := make([]wireLayerV2, len(layers))
		for i, l := range layers {
			wire[i] = wireLayerV2(l)
		}
		return wire
	}
	wire := make([]wireLayerV3, len(layers))
	for i, l := range layers {
		wire[i] = wireLayerV3(l)
	}
	return wire
}

func (c *Client) layersFromWire(raw json.RawMessage) ([]Layer, error) {
	if c.version == V2 {
		var wire []wireLayerV2
		if err := json.Unmarshal(raw, &wire); err != nil {
			return nil, err
		}
		layers := make([]Layer, len(wire))
		for i, w := range wire {
			layers[i] = Layer(w)
		}
		return layers, nil
	}

	var wire []wireLayerV3
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	layers := make([]Layer, len(wire))
	for i, w := range wire {
		layers[i] = Layer(w)
	}
	return layers, nil
}

// managedKeys are top-level configuration payload keys owned by CFS or by
// this package; they are never echoed back on save.
var managedKeys = map[string]bool{
	"name":         true,
	"layers":       true,
	"lastUpdated":  true,
	"last_updated": true,
}

// DecodeConfiguration parses a configuration payload in this client's wire
// format.
func (c *Client) DecodeConfiguration(data []byte) (*Configuration, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid configuration payload: %w", err)
	}

	cfg := &Configuration{Extra: make(map[string]json.RawMessage)}

	if rawName, ok := payload["name"]; ok {
		if err := json.Unmarshal(rawName, &cfg.Name); err != nil {
			return nil, fmt.Errorf("invalid configuration name: %w", err)
		}
	}

	if rawLayers, ok := payload["layers"]; ok {
		layers, err := c.layersFromWire(rawLayers)
		if err != nil {
			return nil, fmt.Errorf("invalid layers in configuration payload: %w", err)
		}
		cfg.Layers = layers
	}

	for key, value := range payload {
		if !managedKeys[key] {
			cfg.Extra[key] = value
		}
	}

	return cfg, nil
}

// encodePayload builds the request body for saving a configuration.
func (c *Client) encodePayload(cfg *Configuration) map[string]any {
	payload := map[string]any{"layers": c.layersToWire(cfg.Layers)}
	for key, value := range cfg.Extra {
		payload[key] = value
	}
	return payload
}

// --- configurations ---

// GetConfiguration fetches a configuration by name.
func (c *Client) GetConfiguration(ctx context.Context, name string) (*Configuration, error) {
	body, err := c.gw.Get(ctx, nil, "configurations", name)
	if err != nil {
		return nil, err
	}

	cfg, err := c.DecodeConfiguration(body)
	if err != nil {
		return nil, fmt.Errorf("configuration %q: %w", name, err)
	}
	cfg.Name = name
	return cfg, nil
}

// configurationExists checks for a configuration, distinguishing absence
// from query failure.
func (c *Client) configurationExists(ctx context.Context, name string) (*Configuration, bool, error) {
	existing, err := c.GetConfiguration(ctx, name)
	if err != nil {
		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	return existing, true, nil
}

// SaveConfiguration stores the configuration in CFS under the given name
// (defaulting to the configuration's current name). When overwrite is
// false, an existing configuration with that name is an error. A non-empty
// backupSuffix saves a copy of any overwritten configuration first.
func (c *Client) SaveConfiguration(ctx context.Context, cfg *Configuration, name string, overwrite bool, backupSuffix string) (*Configuration, error) {
	if name == "" {
		name = cfg.Name
	}
	if name == "" {
		return nil, errors.New("cannot save configuration without a name")
	}

	existing, exists, err := c.configurationExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing configuration %q: %w", name, err)
	}

	if exists && !overwrite {
		return nil, fmt.Errorf("configuration %q already exists in CFS and would be overwritten", name)
	}

	if exists && backupSuffix != "" {
		backupName := name + backupSuffix
		c.logger.Info("backing up existing configuration", "configuration", name, "backup", backupName)
		if _, err := c.gw.Put(ctx, c.encodePayload(existing), "configurations", backupName); err != nil {
			return nil, fmt.Errorf("failed to back up configuration %q: %w", name, err)
		}
	}

	if _, err := c.gw.Put(ctx, c.encodePayload(cfg), "configurations", name); err != nil {
		return nil, fmt.Errorf("failed to save configuration %q: %w", name, err)
	}

	saved := &Configuration{Name: name, Layers: cfg.Layers, Extra: cfg.Extra}
	return saved, nil
}

// --- components ---

func (c *Client) decodeComponent(data []byte) (*Component, error) {
	if c.version == V2 {
		var wire struct {
			ID                  string `json:"id"`
			Enabled             bool   `json:"enabled"`
			DesiredConfig       string `json:"desiredConfig"`
			ConfigurationStatus string `json:"configurationStatus"`
			ErrorCount          int    `json:"errorCount"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, err
		}
		return &Component{
			ID:                  wire.ID,
			Enabled:             wire.Enabled,
			DesiredConfig:       wire.DesiredConfig,
			ConfigurationStatus: wire.ConfigurationStatus,
			ErrorCount:          wire.ErrorCount,
		}, nil
	}

	var wire struct {
		ID                  string `json:"id"`
		Enabled             bool   `json:"enabled"`
		DesiredConfig       string `json:"desired_config"`
		ConfigurationStatus string `json:"configuration_status"`
		ErrorCount          int    `json:"error_count"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	return &Component{
		ID:                  wire.ID,
		Enabled:             wire.Enabled,
		DesiredConfig:       wire.DesiredConfig,
		ConfigurationStatus: wire.ConfigurationStatus,
		ErrorCount:          wire.ErrorCount,
	}, nil
}

// GetComponent fetches a CFS component by xname.
func (c *Client) GetComponent(ctx context.Context, id string) (*Component, error) {
	body, err := c.gw.Get(ctx, nil, "components", id)
	if err != nil {
		return nil, err
	}

	component, err := c.decodeComponent(body)
	if err != nil {
		return nil, fmt.Errorf("invalid component data for %q: %w", id, err)
	}
	if component.ID == "" {
		component.ID = id
	}
	return component, nil
}

// UpdateComponent patches a CFS component. A zero update is a no-op.
func (c *Client) UpdateComponent(ctx context.Context, id string, update ComponentUpdate) error {
	if update.isZero() {
		return nil
	}

	desiredKey, errorKey := "desired_config", "error_count"
	if c.version == V2 {
		desiredKey, errorKey = "desiredConfig", "errorCount"
	}

	payload := map[string]any{}
	if update.DesiredConfig != nil {
		payload[desiredKey] = *update.DesiredConfig
	}
	if update.ClearState {
		payload["state"] = []any{}
	}
	if update.ClearError {
		payload[errorKey] = 0
	}
	if update.Enabled != nil {
		payload["enabled"] = *update.Enabled
	}

	if _, err := c.gw.Patch(ctx, payload, "components", id); err != nil {
		return err
	}
	return nil
}

// ComponentIDsUsingConfig returns the IDs of components whose desired
// configuration is the named one.
func (c *Client) ComponentIDsUsingConfig(ctx context.Context, configName string) ([]string, error) {
	if c.version == V2 {
		params := url.Values{}
		params.Set("configName", configName)

		var components []json.RawMessage
		if err := c.gw.GetJSON(ctx, &components, params, "components"); err != nil {
			return nil, err
		}

		ids := make([]string, 0, len(components))
		for _, raw := range components {
			component, err := c.decodeComponent(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid component in listing: %w", err)
			}
			ids = append(ids, component.ID)
		}
		return ids, nil
	}

	// v3 paginates component listings.
	var ids []string
	afterID := ""
	for {
		params := url.Values{}
		params.Set("config_name", configName)
		params.Set("limit", fmt.Sprint(v3PageLimit))
		if afterID != "" {
			params.Set("after_id", afterID)
		}

		var page struct {
			Components []json.RawMessage `json:"components"`
			Next       *struct {
				AfterID string `json:"after_id"`
			} `json:"next"`
		}
		if err := c.gw.GetJSON(ctx, &page, params, "components"); err != nil {
			return nil, err
		}

		for _, raw := range page.Components {
			component, err := c.decodeComponent(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid component in listing: %w", err)
			}
			ids = append(ids, component.ID)
		}

		if page.Next == nil || page.Next.AfterID == "" {
			break
		}
		afterID = page.Next.AfterID
	}
	return ids, nil
}

// ConfigurationsForComponents returns the distinct desired configurations of
// the node components matching an HSM query.
func (c *Client) ConfigurationsForComponents(ctx context.Context, hsm ComponentQuerier, query map[string]string) ([]*Configuration, error) {
	params := make(map[string]string, len(query)+1)
	for key, value := range query {
		params[key] = value
	}
	params["type"] = "Node"

	xnames, err := hsm.ComponentXNames(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get component xnames from HSM: %w", err)
	}
	c.logger.Info("querying CFS configurations for components", "count", len(xnames))

	configNames := make(map[string]bool)
	for _, xname := range xnames {
		component, err := c.GetComponent(ctx, xname)
		if err != nil {
			return nil, fmt.Errorf("failed to get CFS component %q: %w", xname, err)
		}
		if component.DesiredConfig != "" {
			configNames[component.DesiredConfig] = true
		}
	}

	names := make([]string, 0, len(configNames))
	for name := range configNames {
		names = append(names, name)
	}
	sort.Strings(names)

	configs := make([]*Configuration, 0, len(names))
	for _, name := range names {
		cfg, err := c.GetConfiguration(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to get configuration %q: %w", name, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
