// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"reflect"
	"testing"
)

// testEntrypoint builds an entrypoint with a fake environment and a
// recording exec function.
type testEntrypoint struct {
	*entrypoint

	env          map[string]string
	execCalls    int
	execArgv0    string
	execArgv     []string
	execEnvv     []string
	refreshCalls []string
}

func newTestEntrypoint() *testEntrypoint {
	te := &testEntrypoint{env: map[string]string{"PATH": "/usr/bin"}}
	te.entrypoint = &entrypoint{
		execFunc: func(argv0 string, argv []string, envv []string) error {
			te.execCalls++
			te.execArgv0 = argv0
			te.execArgv = argv
			te.execEnvv = envv
			return nil
		},
		refreshFunc: func(name string) error {
			te.refreshCalls = append(te.refreshCalls, name)
			return nil
		},
		environState: &environState{
			getenv: func(key string) string { return te.env[key] },
			setenv: func(key, value string) error {
				te.env[key] = value
				return nil
			},
			environ: func() []string {
				var environ []string
				for key, value := range te.env {
					environ = append(environ, key+"="+value)
				}
				return environ
			},
		},
	}
	return te
}

func TestRunForwardsArgumentsVerbatim(t *testing.T) {
	te := newTestEntrypoint()
	args := []string{"update-configs", "--product", "sat:2.2.16", "--save"}

	if err := te.run(args); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}

	if te.execCalls != 1 {
		t.Fatalf("exec called %d times, want 1", te.execCalls)
	}
	if te.execArgv0 != "/usr/bin/cfs-config-util" {
		t.Errorf("exec target = %q", te.execArgv0)
	}
	wantArgv := []string{"/usr/bin/cfs-config-util", "update-configs", "--product", "sat:2.2.16", "--save"}
	if !reflect.DeepEqual(te.execArgv, wantArgv) {
		t.Errorf("argv = %v, want %v", te.execArgv, wantArgv)
	}
}

func TestRunEmptyArgumentVector(t *testing.T) {
	te := newTestEntrypoint()

	if err := te.run(nil); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}

	wantArgv := []string{"/usr/bin/cfs-config-util"}
	if !reflect.DeepEqual(te.execArgv, wantArgv) {
		t.Errorf("argv = %v, want just the target path", te.execArgv)
	}
}

func TestRunSetsSSLCertFile(t *testing.T) {
	te := newTestEntrypoint()

	if err := te.run(nil); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}

	if got := te.env["SSL_CERT_FILE"]; got != "/etc/ssl/certs/ca-certificates.crt" {
		t.Errorf("SSL_CERT_FILE = %q", got)
	}

	found := false
	for _, entry := range te.execEnvv {
		if entry == "SSL_CERT_FILE=/etc/ssl/certs/ca-certificates.crt" {
			found = true
		}
	}
	if !found {
		t.Error("SSL_CERT_FILE should be in the environment passed to exec")
	}
}

func TestRunRefreshFailureIsSwallowed(t *testing.T) {
	te := newTestEntrypoint()
	te.refreshFunc = func(name string) error {
		return errors.New("update-ca-certificates: not found")
	}

	if err := te.run([]string{"--help"}); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}
	if te.execCalls != 1 {
		t.Error("exec should still happen when the CA refresh fails")
	}
}

func TestRunRefreshRunsBeforeExec(t *testing.T) {
	te := newTestEntrypoint()

	if err := te.run(nil); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}

	if !reflect.DeepEqual(te.refreshCalls, []string{"update-ca-certificates"}) {
		t.Errorf("refresh calls = %v", te.refreshCalls)
	}
}

func TestRunTargetPathOverride(t *testing.T) {
	te := newTestEntrypoint()
	te.env["CFS_CONFIG_UTIL_PATH"] = "/opt/cray/cfs-config-util"

	if err := te.run([]string{"--version"}); err != nil {
		t.Fatalf("run() returned error: %v", err)
	}

	if te.execArgv0 != "/opt/cray/cfs-config-util" {
		t.Errorf("exec target = %q, want override path", te.execArgv0)
	}
	if te.execArgv[0] != "/opt/cray/cfs-config-util" {
		t.Errorf("argv[0] = %q, want override path", te.execArgv[0])
	}
}

func TestRunExecFailure(t *testing.T) {
	te := newTestEntrypoint()
	te.execFunc = func(argv0 string, argv []string, envv []string) error {
		return errors.New("no such file or directory")
	}

	if err := te.run(nil); err == nil {
		t.Error("expected error when exec fails")
	}
}
