// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"

	"cfs-config-util/internal/cfs"
	"cfs-config-util/internal/hsm"
	"cfs-config-util/internal/issue"
	"cfs-config-util/internal/kube"
	"cfs-config-util/internal/productcatalog"
	"cfs-config-util/internal/session"
	"cfs-config-util/internal/update"
	"cfs-config-util/internal/vcs"
	"cfs-config-util/internal/wait"
)

// newUpdater builds a fully wired Updater for the given CFS API version.
func newUpdater(ctx context.Context, version cfs.Version) (*update.Updater, error) {
	kubeClient, err := kube.NewClient()
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("connect to Kubernetes").
			WithSuggestion("check that a kubeconfig is available or the utility runs in-cluster").
			Wrap(err).
			Build()
	}

	adminSession, err := session.NewAdminSession(ctx, envConfig.APIGatewayHost, envConfig.APICertVerify, kubeClient)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("authenticate to the API gateway").
			WithResource(envConfig.APIGatewayHost).
			WithSuggestion("check that the admin-client-auth secret exists").
			Wrap(err).
			Build()
	}

	httpClient := adminSession.HTTPClient()
	timeout := envConfig.Timeout()

	cfsClient := cfs.NewClient(httpClient, envConfig.APIGatewayHost, version, timeout, logger)
	hsmClient := hsm.NewClient(httpClient, envConfig.APIGatewayHost, timeout, logger)
	catalog := productcatalog.NewCatalog(kubeClient)
	waiter := wait.NewWaiter(cfsClient, 0, logger)

	resolveBranch := func(cloneURL, branch string) (string, error) {
		repo := vcs.NewRepo(cloneURL, envConfig.VCSUsername)
		return repo.CommitHashForBranch(ctx, branch)
	}

	return update.NewUpdater(cfsClient, hsmClient, catalog, resolveBranch, waiter, logger), nil
}
