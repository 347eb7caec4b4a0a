// SPDX-License-Identifier: MPL-2.0

package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithBaseURL(srv.Client(), srv.URL+"/apis/cfs/v3/", 5*time.Second, nil), srv
}

func TestGetBuildsResourcePath(t *testing.T) {
	var gotPath, gotQuery string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"ok": true}`))
	}))

	params := url.Values{}
	params.Set("config_name", "ncn-personalization")
	if _, err := client.Get(context.Background(), params, "components", "x3000c0s1b0n0"); err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}

	if gotPath != "/apis/cfs/v3/components/x3000c0s1b0n0" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if gotQuery != "config_name=ncn-personalization" {
		t.Errorf("unexpected query string %q", gotQuery)
	}
}

func TestGetJSONDecodes(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "test-config"}`))
	}))

	var out struct {
		Name string `json:"name"`
	}
	if err := client.GetJSON(context.Background(), &out, nil, "configurations", "test-config"); err != nil {
		t.Fatalf("GetJSON() returned error: %v", err)
	}
	if out.Name != "test-config" {
		t.Errorf("unexpected decoded name %q", out.Name)
	}
}

func TestGetJSONRejectsBadJSON(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))

	var out map[string]any
	if err := client.GetJSON(context.Background(), &out, nil, "configurations"); err == nil {
		t.Error("expected error for invalid JSON response")
	}
}

func TestPutSendsJSONPayload(t *testing.T) {
	var gotMethod, gotContentType string
	var gotBody []byte
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody = make([]byte, r.ContentLength)
		r.Body.Read(gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	payload := map[string]any{"layers": []any{}}
	if _, err := client.Put(context.Background(), payload, "configurations", "new-config"); err != nil {
		t.Fatalf("Put() returned error: %v", err)
	}

	if gotMethod != http.MethodPut {
		t.Errorf("unexpected method %q", gotMethod)
	}
	if gotContentType != "application/json" {
		t.Errorf("unexpected content type %q", gotContentType)
	}
	if string(gotBody) != `{"layers":[]}` {
		t.Errorf("unexpected body %q", gotBody)
	}
}

func TestErrorResponseIncludesProblemDetails(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"title": "Not Found", "detail": "no such configuration"}`))
	}))

	_, err := client.Get(context.Background(), nil, "configurations", "missing")
	if err == nil {
		t.Fatal("expected error for 404 response")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected status code %d", apiErr.StatusCode)
	}
	if apiErr.Title != "Not Found" || apiErr.Detail != "no such configuration" {
		t.Errorf("problem details not extracted: %+v", apiErr)
	}
}

func TestConnectionFailureWrapsTransportError(t *testing.T) {
	// A server that is immediately closed gives a reliably refused address.
	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	client := NewClientWithBaseURL(http.DefaultClient, deadURL+"/apis/cfs/v2/", time.Second, nil)
	_, err := client.Get(context.Background(), nil, "configurations")
	if err == nil {
		t.Fatal("expected error for refused connection")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Err == nil {
		t.Error("expected transport error to be recorded")
	}
}

func TestResourceURLAgainstGatewayHost(t *testing.T) {
	client := NewClient(http.DefaultClient, "api-gw-service-nmn.local", "smd/hsm/v2/", time.Minute, nil)
	got := client.resourceURL(nil, "State", "Components")
	want := "https://api-gw-service-nmn.local/apis/smd/hsm/v2/State/Components"
	if got != want {
		t.Errorf("resourceURL() = %q, want %q", got, want)
	}
}
