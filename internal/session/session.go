// SPDX-License-Identifier: MPL-2.0

// Package session provides the authenticated HTTP client for the API gateway.
//
// Authentication uses the OAuth2 client-credentials grant against the
// gateway's token service, with the client secret read from the
// admin-client-auth Kubernetes secret. This differs from interactive tools,
// which prompt for user account credentials.
package session

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// tokenEndpointFormat is the token URI under the API gateway; the single
	// parameter is the auth realm.
	tokenEndpointFormat = "/keycloak/realms/%s/protocol/openid-connect/token"

	realm    = "shasta"
	clientID = "admin-client"

	secretNamespace = "default"
	secretName      = "admin-client-auth"
	secretKey       = "client-secret"
)

// SecretGetter supplies secret data; implemented by kube.Client.
type SecretGetter interface {
	Secret(ctx context.Context, namespace, name string) (map[string][]byte, error)
}

// AdminSession holds an authenticated HTTP client for gateway requests.
type AdminSession struct {
	// Host is the API gateway host.
	Host string
	// CertVerify indicates whether the gateway's certificate is verified.
	CertVerify bool

	client *http.Client
}

// TokenURL returns the full token endpoint URL for a gateway host.
func TokenURL(host string) string {
	return "https://" + host + fmt.Sprintf(tokenEndpointFormat, realm)
}

// NewTransport returns an http.Transport honoring the cert verification
// setting.
func NewTransport(certVerify bool) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !certVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return transport
}

// NewAdminSession fetches the admin client secret and builds an HTTP client
// that transparently obtains and refreshes bearer tokens.
func NewAdminSession(ctx context.Context, host string, certVerify bool, secrets SecretGetter) (*AdminSession, error) {
	data, err := secrets.Secret(ctx, secretNamespace, secretName)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin client credentials: %w", err)
	}

	clientSecret, ok := data[secretKey]
	if !ok {
		return nil, fmt.Errorf("secret %s/%s is missing the %q key", secretNamespace, secretName, secretKey)
	}

	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: string(clientSecret),
		TokenURL:     TokenURL(host),
	}

	// The token request must go through a client with the same TLS settings
	// as API requests; oauth2 picks it up from the context.
	base := &http.Client{Transport: NewTransport(certVerify)}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	return &AdminSession{
		Host:       host,
		CertVerify: certVerify,
		client:     conf.Client(ctx),
	}, nil
}

// HTTPClient returns the authenticated HTTP client.
func (s *AdminSession) HTTPClient() *http.Client {
	return s.client
}
