// SPDX-License-Identifier: MPL-2.0

// Package hsm queries the Hardware State Manager for component xnames.
package hsm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"cfs-config-util/internal/gateway"
)

// ServicePath is the HSM service path behind the API gateway.
const ServicePath = "smd/hsm/v2/"

// Client queries HSM.
type Client struct {
	gw *gateway.Client
}

// NewClient creates an HSM client for the given gateway host.
func NewClient(httpClient *http.Client, host string, timeout time.Duration, logger *log.Logger) *Client {
	return &Client{gw: gateway.NewClient(httpClient, host, ServicePath, timeout, logger)}
}

// NewClientWithGateway wraps an existing gateway client. Used by tests.
func NewClientWithGateway(gw *gateway.Client) *Client {
	return &Client{gw: gw}
}

// component is the subset of HSM component state the utility needs.
type component struct {
	ID    string `json:"ID"`
	State string `json:"State"`
}

// ComponentXNames returns the xnames of components matching the given query
// parameters (e.g. Role=Management, Subrole=Master). Components in the
// "Empty" state are omitted: they are slots with no hardware present.
func (c *Client) ComponentXNames(ctx context.Context, params map[string]string) ([]string, error) {
	errPrefix := "failed to get components"
	if len(params) > 0 {
		pairs := make([]string, 0, len(params))
		for key, value := range params {
			pairs = append(pairs, key+"="+value)
		}
		sort.Strings(pairs)
		errPrefix += " with " + strings.Join(pairs, ", ")
	}

	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}

	var response struct {
		Components []component `json:"Components"`
	}
	if err := c.gw.GetJSON(ctx, &response, values, "State", "Components"); err != nil {
		return nil, fmt.Errorf("%s: %w", errPrefix, err)
	}

	xnames := make([]string, 0, len(response.Components))
	for _, comp := range response.Components {
		if comp.State == "Empty" {
			continue
		}
		if comp.ID == "" {
			return nil, fmt.Errorf("%s: component missing ID in response", errPrefix)
		}
		xnames = append(xnames, comp.ID)
	}

	return xnames, nil
}

// NodeIDs returns the node component IDs a CFS configuration should apply
// to: the explicitly listed xnames plus the nodes matching the HSM query,
// if one was given. The query is always restricted to type=Node since only
// node components exist in CFS.
func (c *Client) NodeIDs(ctx context.Context, explicit []string, query map[string]string) ([]string, error) {
	ids := make([]string, len(explicit))
	copy(ids, explicit)

	if len(query) > 0 {
		params := make(map[string]string, len(query)+1)
		for key, value := range query {
			params[key] = value
		}
		params["type"] = "Node"

		matched, err := c.ComponentXNames(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("unable to query HSM for components matching parameters %v: %w", params, err)
		}
		ids = append(ids, matched...)
	}

	return ids, nil
}
