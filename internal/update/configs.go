// SPDX-License-Identifier: MPL-2.0

package update

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cfs-config-util/internal/cfs"
)

// ConfigsOptions describes one update-configs operation.
type ConfigsOptions struct {
	// Layer content. Exactly one of Product or CloneURL must be set.
	Product         string
	ProductVersion  string
	CloneURL        string
	LayerName       string
	Playbooks       []string
	Commit          string
	Branch          string
	State           cfs.LayerState
	ResolveBranches bool

	// Base configurations. At most one of these may be set; with none set
	// the layers are applied to a new empty configuration.
	BaseConfig string
	BaseFile   string
	BaseQuery  map[string]string

	// Save destination. Exactly one must be set.
	SaveInPlace bool
	SaveToCFS   string
	SaveToFile  string
	SaveSuffix  string

	// CreateBackups saves a timestamped copy of any configuration that
	// would be overwritten in CFS.
	CreateBackups bool

	// Component options applied to components using the saved
	// configurations, and assignment of the result to components.
	ClearState   bool
	ClearError   bool
	Enabled      *bool
	AssignXNames []string
	AssignQuery  map[string]string
	Wait         bool
}

func (o ConfigsOptions) assignmentRequested() bool {
	return len(o.AssignXNames) > 0 || len(o.AssignQuery) > 0
}

func (o ConfigsOptions) componentUpdateRequested() bool {
	return o.ClearState || o.ClearError || o.Enabled != nil
}

// baseConfiguration pairs a resolved base with where it came from, which
// determines where in-place and suffix saves go.
type baseConfiguration struct {
	cfg      *cfs.Configuration
	fromFile string
	fromCFS  string
}

// Configs updates CFS configurations per the options: build the requested
// layers, apply them to each base configuration, save the results, and then
// update and assign components.
func (u *Updater) Configs(ctx context.Context, opts ConfigsOptions) error {
	layers, err := u.buildLayers(ctx, opts)
	if err != nil {
		return err
	}

	bases, err := u.resolveBases(ctx, opts)
	if err != nil {
		return err
	}

	for _, base := range bases {
		for _, layer := range layers {
			if err := base.cfg.EnsureLayer(layer, opts.State, u.logger); err != nil {
				return err
			}
		}
	}

	saved, err := u.saveConfigs(ctx, bases, opts)
	if err != nil {
		return err
	}

	// Components using a configuration that was just modified are affected
	// by the change whether or not any component options were given; they
	// are the default set to wait on.
	affected, err := u.affectedComponents(ctx, saved.saved)
	if err != nil {
		return err
	}

	var failed []string
	if opts.componentUpdateRequested() {
		u.logger.Info("updating components using the modified configurations", "count", len(affected))
		_, bad := u.updateEach(ctx, affected, cfs.ComponentUpdate{
			ClearState: opts.ClearState,
			ClearError: opts.ClearError,
			Enabled:    opts.Enabled,
		})
		failed = append(failed, bad...)
	}

	assigned, assignFailed, err := u.assignConfiguration(ctx, saved, opts)
	if err != nil {
		return err
	}
	failed = append(failed, assignFailed...)

	if opts.Wait {
		waitIDs := union(affected, assigned)
		if len(waitIDs) > 0 {
			result, err := u.waiter.ForComponents(ctx, waitIDs)
			if err != nil {
				return err
			}
			if !result.Success() {
				return fmt.Errorf("%d components failed configuration and %d are disabled",
					len(result.Failed), len(result.Disabled))
			}
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to update components: %s", strings.Join(failed, ", "))
	}
	return nil
}

// buildLayers constructs the layers to ensure or remove: one per requested
// playbook, or a single layer using the CFS default playbook.
func (u *Updater) buildLayers(ctx context.Context, opts ConfigsOptions) ([]cfs.Layer, error) {
	cloneURL := opts.CloneURL
	commit := opts.Commit
	branch := opts.Branch

	if opts.Product != "" {
		productCfg, err := u.catalog.ProductConfiguration(ctx, opts.Product, opts.ProductVersion)
		if err != nil {
			return nil, err
		}
		cloneURL = productCfg.CloneURL
		// An explicit branch or commit overrides the imported commit.
		if commit == "" && branch == "" {
			commit = productCfg.Commit
		}
	}

	if branch != "" && opts.ResolveBranches {
		resolved, err := u.resolveBranch(cloneURL, branch)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve branch %q in repo %q: %w", branch, cloneURL, err)
		}
		u.logger.Info("resolved branch to commit", "branch", branch, "commit", resolved)
		commit = resolved
		branch = ""
	}

	playbooks := opts.Playbooks
	if len(playbooks) == 0 {
		playbooks = []string{""}
	}

	layers := make([]cfs.Layer, 0, len(playbooks))
	for _, playbook := range playbooks {
		layers = append(layers, cfs.NewLayerFromCloneURL(cloneURL, opts.LayerName, playbook, commit, branch))
	}
	return layers, nil
}

// resolveBases loads the base configurations the layers are applied to.
func (u *Updater) resolveBases(ctx context.Context, opts ConfigsOptions) ([]*baseConfiguration, error) {
	switch {
	case opts.BaseConfig != "":
		cfg, err := u.cfs.GetConfiguration(ctx, opts.BaseConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to get base configuration %q: %w", opts.BaseConfig, err)
		}
		return []*baseConfiguration{{cfg: cfg, fromCFS: opts.BaseConfig}}, nil

	case opts.BaseFile != "":
		cfg, err := u.cfs.ReadConfigurationFile(opts.BaseFile)
		if err != nil {
			return nil, err
		}
		return []*baseConfiguration{{cfg: cfg, fromFile: opts.BaseFile}}, nil

	case len(opts.BaseQuery) > 0:
		configs, err := u.cfs.ConfigurationsForComponents(ctx, u.hsm, opts.BaseQuery)
		if err != nil {
			return nil, err
		}
		if len(configs) == 0 {
			return nil, errors.New("no components matching the base query have a desired configuration")
		}
		bases := make([]*baseConfiguration, len(configs))
		for i, cfg := range configs {
			bases[i] = &baseConfiguration{cfg: cfg, fromCFS: cfg.Name}
		}
		return bases, nil
	}

	return []*baseConfiguration{{cfg: cfs.EmptyConfiguration()}}, nil
}

// saveResult records where the configurations ended up: names newly written
// to CFS, and names of base configurations that needed no update.
type saveResult struct {
	saved     []string
	unchanged []string
}

// cfsNames returns every CFS configuration name the operation resolved to,
// saved or not. Assignment targets unchanged configurations too.
func (r saveResult) cfsNames() []string {
	return append(append([]string{}, r.saved...), r.unchanged...)
}

// saveConfigs stores each modified base configuration at its destination.
// Unchanged configurations are not written, no matter the destination.
func (u *Updater) saveConfigs(ctx context.Context, bases []*baseConfiguration, opts ConfigsOptions) (saveResult, error) {
	var res saveResult

	if len(bases) > 1 && (opts.SaveToCFS != "" || opts.SaveToFile != "") {
		return res, fmt.Errorf("cannot save %d base configurations to a single destination", len(bases))
	}

	// With no base given, a destination name was never claimed by the
	// caller's own data, so an existing configuration or file of that name
	// must not be clobbered.
	overwrite := opts.BaseConfig != "" || opts.BaseFile != "" || len(opts.BaseQuery) > 0

	backupSuffix := ""
	if opts.CreateBackups {
		backupSuffix = u.backupSuffix()
	}

	for _, base := range bases {
		if !base.cfg.Changed() {
			u.logger.Info("configuration is already up to date", "configuration", base.cfg.Name)
			if base.cfg.Name != "" {
				res.unchanged = append(res.unchanged, base.cfg.Name)
			}
			continue
		}

		switch {
		case opts.SaveInPlace:
			if base.fromFile != "" {
				if err := u.cfs.WriteConfigurationFile(base.cfg, base.fromFile, true); err != nil {
					return res, err
				}
				continue
			}
			saved, err := u.cfs.SaveConfiguration(ctx, base.cfg, base.fromCFS, true, backupSuffix)
			if err != nil {
				return res, err
			}
			res.saved = append(res.saved, saved.Name)

		case opts.SaveToCFS != "":
			saved, err := u.cfs.SaveConfiguration(ctx, base.cfg, opts.SaveToCFS, overwrite, backupSuffix)
			if err != nil {
				return res, err
			}
			res.saved = append(res.saved, saved.Name)

		case opts.SaveToFile != "":
			if err := u.cfs.WriteConfigurationFile(base.cfg, opts.SaveToFile, overwrite); err != nil {
				return res, err
			}

		case opts.SaveSuffix != "":
			if base.fromFile != "" {
				if err := u.cfs.WriteConfigurationFile(base.cfg, base.fromFile+opts.SaveSuffix, true); err != nil {
					return res, err
				}
				continue
			}
			name := base.fromCFS + opts.SaveSuffix
			saved, err := u.cfs.SaveConfiguration(ctx, base.cfg, name, true, backupSuffix)
			if err != nil {
				return res, err
			}
			res.saved = append(res.saved, saved.Name)

		default:
			return res, errors.New("no save destination given")
		}
	}
	return res, nil
}

// affectedComponents lists the components whose desired configuration is one
// of the given configuration names, deduplicated across names.
func (u *Updater) affectedComponents(ctx context.Context, names []string) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, name := range names {
		componentIDs, err := u.cfs.ComponentIDsUsingConfig(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to find components using configuration %q: %w", name, err)
		}
		for _, id := range componentIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// assignConfiguration sets the resulting configuration as the desired
// configuration of the requested components. It returns every component the
// assignment targeted, including those whose update failed.
func (u *Updater) assignConfiguration(ctx context.Context, saved saveResult, opts ConfigsOptions) (assigned, failed []string, err error) {
	if !opts.assignmentRequested() {
		return nil, nil, nil
	}

	names := saved.cfsNames()
	if len(names) != 1 {
		return nil, nil, fmt.Errorf(
			"cannot assign to components: expected exactly one resulting configuration, got %d", len(names))
	}

	ids, err := u.hsm.NodeIDs(ctx, opts.AssignXNames, opts.AssignQuery)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve components for assignment: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil, errors.New("no components matched the assignment options")
	}

	name := names[0]
	u.logger.Info("assigning configuration to components", "configuration", name, "count", len(ids))

	componentUpdate := cfs.ComponentUpdate{
		DesiredConfig: &name,
		ClearState:    opts.ClearState,
		ClearError:    opts.ClearError,
		Enabled:       opts.Enabled,
	}
	_, failed = u.updateEach(ctx, ids, componentUpdate)
	return ids, failed, nil
}

// union merges two component ID lists, preserving order and dropping
// duplicates.
func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var ids []string
	for _, id := range append(append([]string{}, a...), b...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// updateEach applies the same update to every component, collecting
// failures instead of stopping at the first.
func (u *Updater) updateEach(ctx context.Context, ids []string, componentUpdate cfs.ComponentUpdate) (updated, failed []string) {
	for _, id := range ids {
		if err := u.cfs.UpdateComponent(ctx, id, componentUpdate); err != nil {
			u.logger.Error("failed to update component", "component", id, "error", err)
			failed = append(failed, id)
			continue
		}
		updated = append(updated, id)
	}
	return updated, failed
}
