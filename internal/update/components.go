// SPDX-License-Identifier: MPL-2.0

package update

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cfs-config-util/internal/cfs"
)

// ComponentsOptions describes one update-components operation.
type ComponentsOptions struct {
	// XNames and Query select the target components. At least one must be
	// given.
	XNames []string
	Query  map[string]string

	// Fields to change on each component.
	DesiredConfig *string
	ClearState    bool
	ClearError    bool
	Enabled       *bool

	// Wait polls the updated components until they finish configuring.
	Wait bool
}

// Components updates the selected CFS components. Per-component failures
// are collected; any failure makes the whole operation an error after all
// components have been attempted.
func (u *Updater) Components(ctx context.Context, opts ComponentsOptions) error {
	if len(opts.XNames) == 0 && len(opts.Query) == 0 {
		return errors.New("no components selected: give explicit xnames or an HSM query")
	}

	ids, err := u.hsm.NodeIDs(ctx, opts.XNames, opts.Query)
	if err != nil {
		return fmt.Errorf("failed to resolve target components: %w", err)
	}
	if len(ids) == 0 {
		return errors.New("no components matched the given options")
	}

	componentUpdate := cfs.ComponentUpdate{
		DesiredConfig: opts.DesiredConfig,
		ClearState:    opts.ClearState,
		ClearError:    opts.ClearError,
		Enabled:       opts.Enabled,
	}
	u.logger.Info("updating components", "count", len(ids))
	updated, failed := u.updateEach(ctx, ids, componentUpdate)

	if opts.Wait && len(updated) > 0 {
		result, err := u.waiter.ForComponents(ctx, updated)
		if err != nil {
			return err
		}
		if !result.Success() {
			return fmt.Errorf("%d components failed configuration and %d are disabled",
				len(result.Failed), len(result.Disabled))
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to update components: %s", strings.Join(failed, ", "))
	}
	return nil
}
