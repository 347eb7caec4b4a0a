// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cfs-config-util/internal/cfs"
	"cfs-config-util/internal/update"
)

// componentsFlags holds the raw flag values of update-components.
type componentsFlags struct {
	xnames        []string
	query         string
	desiredConfig string
	clearState    bool
	clearError    bool
	enable        bool
	disable       bool
	waitForUpdate bool
	cfsVersion    string
}

var (
	componentsOpts componentsFlags

	updateComponentsCmd = &cobra.Command{
		Use:   "update-components",
		Short: "Update CFS components",
		Long: `Update CFS components selected by explicit xnames or by an HSM query:
set their desired configuration, clear their configuration state or error
count, and enable or disable them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := componentsOptionsFromFlags(componentsOpts)
			if err != nil {
				return err
			}

			version, err := cfs.ParseVersion(componentsOpts.cfsVersion)
			if err != nil {
				return err
			}

			updater, err := newUpdater(cmd.Context(), version)
			if err != nil {
				return err
			}

			if err := updater.Components(cmd.Context(), opts); err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			return nil
		},
	}
)

func init() {
	f := updateComponentsCmd.Flags()

	f.StringSliceVar(&componentsOpts.xnames, "xnames", nil,
		"comma-separated xnames of the components to update")
	f.StringVar(&componentsOpts.query, "query", "",
		"comma-separated key=value pairs querying HSM for components to update")
	f.StringVar(&componentsOpts.desiredConfig, "desired-config", "",
		"name of the CFS configuration to set as the desired configuration")
	f.BoolVar(&componentsOpts.clearState, "clear-state", false,
		"clear the configuration state of the components")
	f.BoolVar(&componentsOpts.clearError, "clear-error", false,
		"reset the error count of the components")
	f.BoolVar(&componentsOpts.enable, "enabled", false,
		"enable the components in CFS")
	f.BoolVar(&componentsOpts.disable, "disabled", false,
		"disable the components in CFS")
	f.BoolVar(&componentsOpts.waitForUpdate, "wait", false,
		"wait for the components to finish configuring")
	f.StringVar(&componentsOpts.cfsVersion, "cfs-version", "",
		"CFS API version to use (v2 or v3, default v3)")
}

// componentsOptionsFromFlags validates the update-components flags and
// converts them into options for the updater.
func componentsOptionsFromFlags(f componentsFlags) (update.ComponentsOptions, error) {
	var opts update.ComponentsOptions

	if len(f.xnames) == 0 && f.query == "" {
		return opts, errors.New("at least one of --xnames and --query is required")
	}
	if f.enable && f.disable {
		return opts, errors.New("--enabled and --disabled are mutually exclusive")
	}

	query, err := parseQuery(f.query)
	if err != nil {
		return opts, fmt.Errorf("invalid --query: %w", err)
	}

	var desired *string
	if f.desiredConfig != "" {
		desired = &f.desiredConfig
	}

	opts = update.ComponentsOptions{
		XNames:        f.xnames,
		Query:         query,
		DesiredConfig: desired,
		ClearState:    f.clearState,
		ClearError:    f.clearError,
		Enabled:       enabledValue(f.enable, f.disable),
		Wait:          f.waitForUpdate,
	}
	return opts, nil
}
