// SPDX-License-Identifier: MPL-2.0

// Package gateway implements the HTTP client for services behind the API gateway.
//
// Every managed service (CFS, HSM) is reached at
// https://<gateway host>/apis/<service path>/..., with OAuth2 bearer
// authentication supplied by the http.Client from the session package.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// APIError describes a failed request to a service behind the API gateway.
// When the service returned an RFC 7807 problem document, its title and
// detail are included in the message.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Title      string
	Detail     string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s request to URL %q failed: %v", e.Method, e.URL, e.Err)
	}

	msg := fmt.Sprintf("%s request to URL %q failed with status code %d", e.Method, e.URL, e.StatusCode)
	if e.Title != "" {
		msg += ". " + e.Title
	}
	if e.Detail != "" {
		msg += " Detail: " + e.Detail
	}
	return msg
}

// Unwrap returns the underlying transport error, if any.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Client issues requests to one service behind the API gateway.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     *log.Logger
}

// NewClient creates a Client for the service at
// https://<host>/apis/<servicePath>. The httpClient is expected to carry
// authentication and TLS settings (see the session package).
func NewClient(httpClient *http.Client, host, servicePath string, timeout time.Duration, logger *log.Logger) *Client {
	servicePath = strings.TrimPrefix(servicePath, "/")
	if !strings.HasSuffix(servicePath, "/") {
		servicePath += "/"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    "https://" + host + "/apis/" + servicePath,
		timeout:    timeout,
		logger:     logger,
	}
}

// NewClientWithBaseURL creates a Client rooted at an explicit base URL.
// Used by tests to point a client at an httptest server.
func NewClientWithBaseURL(httpClient *http.Client, baseURL string, timeout time.Duration, logger *log.Logger) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		timeout:    timeout,
		logger:     logger,
	}
}

// resourceURL joins the path components onto the service base URL, adding
// query parameters if any.
func (c *Client) resourceURL(params url.Values, pathParts ...string) string {
	u := c.baseURL + strings.Join(pathParts, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Get issues a GET request and returns the response body.
func (c *Client) Get(ctx context.Context, params url.Values, pathParts ...string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, params, nil, pathParts)
}

// GetJSON issues a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, out any, params url.Values, pathParts ...string) error {
	body, err := c.Get(ctx, params, pathParts...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("invalid JSON response from %q: %w", c.resourceURL(params, pathParts...), err)
	}
	return nil
}

// Put issues a PUT request with a JSON-encoded payload.
func (c *Client) Put(ctx context.Context, payload any, pathParts ...string) ([]byte, error) {
	return c.do(ctx, http.MethodPut, nil, payload, pathParts)
}

// Patch issues a PATCH request with a JSON-encoded payload.
func (c *Client) Patch(ctx context.Context, payload any, pathParts ...string) ([]byte, error) {
	return c.do(ctx, http.MethodPatch, nil, payload, pathParts)
}

func (c *Client) do(ctx context.Context, method string, params url.Values, payload any, pathParts []string) ([]byte, error) {
	reqURL := c.resourceURL(params, pathParts...)

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload for %q: %w", method, reqURL, err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, &APIError{Method: method, URL: reqURL, Err: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.logger != nil {
		c.logger.Debug("issuing API gateway request", "method", method, "url", reqURL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Method: method, URL: reqURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Method: method, URL: reqURL, Err: err}
	}

	if c.logger != nil {
		c.logger.Debug("received API gateway response", "method", method, "url", reqURL, "status", resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Method: method, URL: reqURL, StatusCode: resp.StatusCode}

		// Attempt to get more information from an RFC 7807 problem body.
		var problem struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		if jsonErr := json.Unmarshal(body, &problem); jsonErr == nil {
			apiErr.Title = problem.Title
			apiErr.Detail = problem.Detail
		}
		return nil, apiErr
	}

	return body, nil
}
