// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
)

const (
	// defaultTargetPath is where the image installs the utility.
	defaultTargetPath = "/usr/bin/cfs-config-util"

	// targetPathEnvVar overrides the target path, for packaging layouts
	// that install the utility elsewhere.
	targetPathEnvVar = "CFS_CONFIG_UTIL_PATH"

	// caBundlePath is the system CA bundle, including any certificates
	// added by the CA refresh utility.
	caBundlePath = "/etc/ssl/certs/ca-certificates.crt"

	// caRefreshCommand rebuilds the system CA bundle from installed
	// certificates.
	caRefreshCommand = "update-ca-certificates"
)

// entrypoint holds the process-level operations, injectable for tests.
type entrypoint struct {
	execFunc     func(argv0 string, argv []string, envv []string) error
	refreshFunc  func(name string) error
	environState *environState
}

// environState wraps environment access so tests do not mutate the real
// process environment.
type environState struct {
	getenv  func(key string) string
	setenv  func(key, value string) error
	environ func() []string
}

func newEntrypoint() *entrypoint {
	return &entrypoint{
		execFunc:    syscall.Exec,
		refreshFunc: runDiscardingOutput,
		environState: &environState{
			getenv:  os.Getenv,
			setenv:  os.Setenv,
			environ: os.Environ,
		},
	}
}

// runDiscardingOutput runs a command with its output thrown away. The
// refresh utility is chatty on stderr even on success, and its output is
// not useful to admins reading installer logs.
func runDiscardingOutput(name string) error {
	cmd := exec.Command(name)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}

// run prepares the trust store and replaces the current process with the
// target utility. It only returns on failure to exec.
func (e *entrypoint) run(args []string) error {
	if err := e.environState.setenv("SSL_CERT_FILE", caBundlePath); err != nil {
		return fmt.Errorf("failed to set SSL_CERT_FILE: %w", err)
	}

	// A failed refresh is not fatal: the image ships with a usable bundle,
	// and extra certificates are only needed for site-specific gateways.
	_ = e.refreshFunc(caRefreshCommand)

	target := e.environState.getenv(targetPathEnvVar)
	if target == "" {
		target = defaultTargetPath
	}

	argv := append([]string{target}, args...)
	if err := e.execFunc(target, argv, e.environState.environ()); err != nil {
		return fmt.Errorf("failed to execute %q: %w", target, err)
	}
	return nil
}
