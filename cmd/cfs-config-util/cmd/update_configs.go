// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cfs-config-util/internal/cfs"
	"cfs-config-util/internal/update"
)

// configsFlags holds the raw flag values of update-configs, converted into
// update.ConfigsOptions after validation.
type configsFlags struct {
	product           string
	cloneURL          string
	layerName         string
	playbooks         []string
	state             string
	gitBranch         string
	gitCommit         string
	noResolveBranches bool

	baseConfig string
	baseFile   string
	baseQuery  string

	save          bool
	saveToCFS     string
	saveToFile    string
	saveSuffix    string
	createBackups bool

	clearState    bool
	clearError    bool
	enable        bool
	disable       bool
	assignXNames  []string
	assignQuery   string
	waitForUpdate bool

	cfsVersion string
}

var (
	configsOpts configsFlags

	updateConfigsCmd = &cobra.Command{
		Use:   "update-configs",
		Short: "Add, update, or remove a layer of CFS configurations",
		Long: `Add, update, or remove a layer of CFS configurations.

The layer content comes from a product in the product catalog or from an
explicit clone URL. The layer is applied to one or more base configurations,
and the result is saved to CFS or to a file. The saved configuration can be
assigned to components, which can then be waited on until they finish
configuring.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := configsOptionsFromFlags(configsOpts)
			if err != nil {
				return err
			}

			version, err := cfs.ParseVersion(configsOpts.cfsVersion)
			if err != nil {
				return err
			}

			updater, err := newUpdater(cmd.Context(), version)
			if err != nil {
				return err
			}

			if err := updater.Configs(cmd.Context(), opts); err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			return nil
		},
	}
)

func init() {
	f := updateConfigsCmd.Flags()

	f.StringVar(&configsOpts.product, "product", "",
		"name and version of the product providing the layer, as NAME[:VERSION] (latest version when omitted)")
	f.StringVar(&configsOpts.cloneURL, "clone-url", "",
		"git clone URL to use in the configuration layer")
	f.StringVar(&configsOpts.layerName, "layer-name", "",
		"name of the configuration layer; a default is constructed when omitted")
	f.StringArrayVar(&configsOpts.playbooks, "playbook", nil,
		"playbook for the layer; repeatable for one layer per playbook (CFS default playbook when omitted)")
	f.StringVar(&configsOpts.state, "state", string(cfs.LayerStatePresent),
		"whether the layer should be present in or absent from the configurations")
	f.StringVar(&configsOpts.gitBranch, "git-branch", "",
		"git branch to use in the configuration layer")
	f.StringVar(&configsOpts.gitCommit, "git-commit", "",
		"git commit hash to use in the configuration layer")
	f.BoolVar(&configsOpts.noResolveBranches, "no-resolve-branches", false,
		"do not resolve branch names to commit hashes before updating")

	f.StringVar(&configsOpts.baseConfig, "base-config", "",
		"name of the CFS configuration to use as a base")
	f.StringVar(&configsOpts.baseFile, "base-file", "",
		"path to a file containing a CFS configuration payload to use as a base")
	f.StringVar(&configsOpts.baseQuery, "base-query", "",
		"comma-separated key=value pairs querying HSM for components whose desired configurations are the bases")

	f.BoolVar(&configsOpts.save, "save", false,
		"save the modified configuration in place")
	f.StringVar(&configsOpts.saveToCFS, "save-to-cfs", "",
		"save the modified configuration under the given name in CFS")
	f.StringVar(&configsOpts.saveToFile, "save-to-file", "",
		"save the modified configuration to the given file")
	f.StringVar(&configsOpts.saveSuffix, "save-suffix", "",
		"save the configuration under a new name created by appending this suffix")
	f.BoolVar(&configsOpts.createBackups, "create-backups", false,
		"save a timestamped backup of any CFS configuration that is overwritten")

	f.BoolVar(&configsOpts.clearState, "clear-state", false,
		"clear the configuration state of affected components")
	f.BoolVar(&configsOpts.clearError, "clear-error", false,
		"reset the error count of affected components")
	f.BoolVar(&configsOpts.enable, "enabled", false,
		"enable the affected components in CFS")
	f.BoolVar(&configsOpts.disable, "disabled", false,
		"disable the affected components in CFS")
	f.StringSliceVar(&configsOpts.assignXNames, "assign-to-xnames", nil,
		"comma-separated xnames to assign the saved configuration to")
	f.StringVar(&configsOpts.assignQuery, "assign-to-query", "",
		"comma-separated key=value pairs querying HSM for components to assign the saved configuration to")
	f.BoolVar(&configsOpts.waitForUpdate, "wait", false,
		"wait for affected components to finish configuring")

	f.StringVar(&configsOpts.cfsVersion, "cfs-version", "",
		"CFS API version to use (v2 or v3, default v3)")
}

// configsOptionsFromFlags validates the update-configs flag combinations and
// converts them into options for the updater.
func configsOptionsFromFlags(f configsFlags) (update.ConfigsOptions, error) {
	var opts update.ConfigsOptions

	if (f.product == "") == (f.cloneURL == "") {
		return opts, errors.New("exactly one of --product and --clone-url is required")
	}
	if f.gitBranch != "" && f.gitCommit != "" {
		return opts, errors.New("--git-branch and --git-commit are mutually exclusive")
	}
	if f.cloneURL != "" && f.gitBranch == "" && f.gitCommit == "" {
		return opts, errors.New("--clone-url requires either --git-branch or --git-commit")
	}

	baseCount := 0
	for _, set := range []bool{f.baseConfig != "", f.baseFile != "", f.baseQuery != ""} {
		if set {
			baseCount++
		}
	}
	if baseCount > 1 {
		return opts, errors.New("at most one of --base-config, --base-file, and --base-query may be given")
	}

	saveCount := 0
	for _, set := range []bool{f.save, f.saveToCFS != "", f.saveToFile != "", f.saveSuffix != ""} {
		if set {
			saveCount++
		}
	}
	if saveCount != 1 {
		return opts, errors.New("exactly one of --save, --save-to-cfs, --save-to-file, and --save-suffix is required")
	}

	if baseCount == 0 && (f.save || f.saveSuffix != "") {
		return opts, errors.New("--save and --save-suffix require a base option naming what to save back to")
	}
	if f.baseQuery != "" && (f.saveToCFS != "" || f.saveToFile != "") {
		return opts, errors.New("--base-query is not compatible with --save-to-cfs or --save-to-file")
	}
	if f.baseQuery != "" && (len(f.assignXNames) > 0 || f.assignQuery != "") {
		return opts, errors.New("--base-query is not compatible with assignment options")
	}
	if f.enable && f.disable {
		return opts, errors.New("--enabled and --disabled are mutually exclusive")
	}

	state, err := cfs.ParseLayerState(f.state)
	if err != nil {
		return opts, err
	}

	product, productVersion := parseProduct(f.product)

	baseQuery, err := parseQuery(f.baseQuery)
	if err != nil {
		return opts, fmt.Errorf("invalid --base-query: %w", err)
	}
	assignQuery, err := parseQuery(f.assignQuery)
	if err != nil {
		return opts, fmt.Errorf("invalid --assign-to-query: %w", err)
	}

	opts = update.ConfigsOptions{
		Product:         product,
		ProductVersion:  productVersion,
		CloneURL:        f.cloneURL,
		LayerName:       f.layerName,
		Playbooks:       f.playbooks,
		Commit:          f.gitCommit,
		Branch:          f.gitBranch,
		State:           state,
		ResolveBranches: !f.noResolveBranches,

		BaseConfig: f.baseConfig,
		BaseFile:   f.baseFile,
		BaseQuery:  baseQuery,

		SaveInPlace:   f.save,
		SaveToCFS:     f.saveToCFS,
		SaveToFile:    f.saveToFile,
		SaveSuffix:    f.saveSuffix,
		CreateBackups: f.createBackups,

		ClearState:   f.clearState,
		ClearError:   f.clearError,
		Enabled:      enabledValue(f.enable, f.disable),
		AssignXNames: f.assignXNames,
		AssignQuery:  assignQuery,
		Wait:         f.waitForUpdate,
	}
	return opts, nil
}

// parseProduct splits a NAME[:VERSION] product specification.
func parseProduct(s string) (name, version string) {
	name, version, _ = strings.Cut(s, ":")
	return name, version
}

// parseQuery parses comma-separated key=value pairs into a map.
func parseQuery(s string) (map[string]string, error) {
	if s == "" {
		return nil, nil
	}

	query := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%q is not a key=value pair", pair)
		}
		query[key] = value
	}
	return query, nil
}

// enabledValue folds the --enabled/--disabled pair into an optional bool.
func enabledValue(enable, disable bool) *bool {
	switch {
	case enable:
		v := true
		return &v
	case disable:
		v := false
		return &v
	}
	return nil
}
