// SPDX-License-Identifier: MPL-2.0

// vcs-creds-helper prints the VCS password from the cluster's
// vcs-user-credentials secret. It is invoked by git through GIT_ASKPASS so
// the password never appears on a command line or in a URL.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cfs-config-util/internal/kube"
)

const (
	secretNamespace = "services"
	secretName      = "vcs-user-credentials"
	secretKey       = "vcs_password"
)

// secretGetter matches kube.Client.Secret; injectable for tests.
type secretGetter interface {
	Secret(ctx context.Context, namespace, name string) (map[string][]byte, error)
}

func main() {
	client, err := kube.NewClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, "vcs-creds-helper:", err)
		os.Exit(1)
	}

	if err := printPassword(context.Background(), client, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "vcs-creds-helper:", err)
		os.Exit(1)
	}
}

// printPassword writes the VCS password followed by a newline, as git
// expects from a GIT_ASKPASS program.
func printPassword(ctx context.Context, secrets secretGetter, out io.Writer) error {
	data, err := secrets.Secret(ctx, secretNamespace, secretName)
	if err != nil {
		return fmt.Errorf("could not retrieve password from Kubernetes secrets: %w", err)
	}

	password, ok := data[secretKey]
	if !ok {
		return fmt.Errorf("secret %s/%s is missing the %q key", secretNamespace, secretName, secretKey)
	}

	_, err = fmt.Fprintln(out, strings.TrimSpace(string(password)))
	return err
}
