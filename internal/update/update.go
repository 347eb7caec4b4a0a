// SPDX-License-Identifier: MPL-2.0

// Package update orchestrates CFS configuration and component updates.
//
// It ties the CFS, HSM, VCS, and product catalog clients together to
// implement the update-configs and update-components operations.
package update

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"cfs-config-util/internal/cfs"
	"cfs-config-util/internal/productcatalog"
	"cfs-config-util/internal/wait"
)

// CFS is the subset of the CFS client used by the updater.
type CFS interface {
	GetConfiguration(ctx context.Context, name string) (*cfs.Configuration, error)
	SaveConfiguration(ctx context.Context, cfg *cfs.Configuration, name string, overwrite bool, backupSuffix string) (*cfs.Configuration, error)
	ReadConfigurationFile(path string) (*cfs.Configuration, error)
	WriteConfigurationFile(cfg *cfs.Configuration, path string, overwrite bool) error
	UpdateComponent(ctx context.Context, id string, update cfs.ComponentUpdate) error
	ComponentIDsUsingConfig(ctx context.Context, configName string) ([]string, error)
	ConfigurationsForComponents(ctx context.Context, hsm cfs.ComponentQuerier, query map[string]string) ([]*cfs.Configuration, error)
}

// HSM is the subset of the HSM client used by the updater.
type HSM interface {
	cfs.ComponentQuerier
	NodeIDs(ctx context.Context, explicit []string, query map[string]string) ([]string, error)
}

// Catalog looks up product configuration repos; implemented by
// productcatalog.Catalog.
type Catalog interface {
	ProductConfiguration(ctx context.Context, product, version string) (productcatalog.Configuration, error)
}

// BranchResolver resolves a branch of a repo to a commit hash; implemented
// with vcs.Repo.
type BranchResolver func(cloneURL, branch string) (string, error)

// Waiter waits for components to finish configuring; implemented by
// wait.Waiter.
type Waiter interface {
	ForComponents(ctx context.Context, ids []string) (wait.Result, error)
}

// Updater performs configuration and component updates.
type Updater struct {
	cfs           CFS
	hsm           HSM
	catalog       Catalog
	resolveBranch BranchResolver
	waiter        Waiter
	logger        *log.Logger
	now           func() time.Time
}

// NewUpdater wires an Updater from its dependencies.
func NewUpdater(cfsClient CFS, hsmClient HSM, catalog Catalog, resolveBranch BranchResolver, waiter Waiter, logger *log.Logger) *Updater {
	return &Updater{
		cfs:           cfsClient,
		hsm:           hsmClient,
		catalog:       catalog,
		resolveBranch: resolveBranch,
		waiter:        waiter,
		logger:        logger,
		now:           time.Now,
	}
}

// backupSuffix returns the timestamped suffix appended to the names of
// configuration backups.
func (u *Updater) backupSuffix() string {
	return u.now().Format("-backup-20060102T150405")
}
