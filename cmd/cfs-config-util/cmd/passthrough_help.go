// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
)

// passthroughHelpText documents the options product installers expose to
// admins through their install scripts. Only the git, base, and save options
// are passed through; layer content and assignment are fixed by the
// installer.
const passthroughHelpText = `# Passthrough options

These options can be passed through a product's installation script to
control how its CFS configuration layer is applied.

## Git options

Options that control the git ref used in the layer.

- ` + "`--git-branch BRANCH`" + ` — use the given git branch in the layer.
  By default the branch is resolved to a commit hash before the
  configuration is updated.
- ` + "`--git-commit COMMIT`" + ` — use the given git commit hash in the
  layer. Mutually exclusive with ` + "`--git-branch`" + `.
- ` + "`--no-resolve-branches`" + ` — keep the branch name in the layer
  instead of resolving it to a commit hash.

## Base options

Options that control which configurations the layer is applied to.

- ` + "`--base-config NAME`" + ` — use the named CFS configuration as the base.
- ` + "`--base-file PATH`" + ` — use a CFS configuration payload from the
  given file as the base.
- ` + "`--base-query QUERY`" + ` — comma-separated key=value pairs querying
  HSM for components; the desired configurations of the matching components
  are the bases. Not compatible with ` + "`--save-to-cfs`" + ` or
  ` + "`--save-to-file`" + `.

## Save options

Options that control where the modified configuration is saved. Exactly one
is required.

- ` + "`--save`" + ` — save the configuration in place, updating the CFS
  configuration or file it was loaded from.
- ` + "`--save-to-cfs NAME`" + ` — save the configuration under the given
  name in CFS.
- ` + "`--save-to-file PATH`" + ` — save the configuration to the given file.
- ` + "`--save-suffix SUFFIX`" + ` — save the configuration under a new name
  created by appending the suffix to the base name.
`

var passthroughHelpCmd = &cobra.Command{
	Use:   "passthrough-help",
	Short: "Show help for the options installers pass through to admins",
	RunE: func(cmd *cobra.Command, args []string) error {
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
		if err != nil {
			return err
		}

		rendered, err := renderer.Render(passthroughHelpText)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), rendered)
		return nil
	},
}
