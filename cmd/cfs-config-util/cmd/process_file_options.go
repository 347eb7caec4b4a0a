// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Mount points inside the container where host files are made available.
const (
	inputDataDir  = "/data/input"
	outputDataDir = "/data/output"
)

const (
	baseFileOption   = "--base-file"
	saveToFileOption = "--save-to-file"
)

// bindMount describes one bind mount needed by the `podman run` invocation.
type bindMount struct {
	source   string
	target   string
	readonly bool
}

// mountOptionString returns the mount option to pass to `podman run`.
func (m bindMount) mountOptionString() string {
	opt := fmt.Sprintf("--mount type=bind,src=%s,target=%s", m.source, m.target)
	if m.readonly {
		opt += ",ro=true"
	}
	return opt
}

// fileOptionsResult is the JSON document consumed by installer scripts
// through jq.
type fileOptionsResult struct {
	MountOpts      string `json:"mount_opts"`
	TranslatedArgs string `json:"translated_args"`
}

var processFileOptionsCmd = &cobra.Command{
	Use:   "process-file-options [update-configs options]",
	Short: "Translate file options for running in a container",
	Long: `Translate file options for running cfs-config-util in a container.

Product installers run cfs-config-util through podman. Any files named by
--base-file or --save-to-file live on the host and must be bind mounted
into the container. This command inspects the given update-configs options
and prints, as JSON, the mount options to add to the podman invocation and
the options with file paths translated to their in-container locations.`,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := processFileOptions(args)
		if err != nil {
			return err
		}

		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		return nil
	},
}

// processFileOptions computes the bind mounts and translated arguments for
// the given update-configs options.
func processFileOptions(args []string) (fileOptionsResult, error) {
	flags := pflag.NewFlagSet("process-file-options", pflag.ContinueOnError)
	flags.ParseErrorsWhitelist = pflag.ParseErrorsWhitelist{UnknownFlags: true}
	baseFile := flags.String("base-file", "", "")
	saveToFile := flags.String("save-to-file", "", "")
	save := flags.Bool("save", false, "")
	saveSuffix := flags.String("save-suffix", "", "")
	if err := flags.Parse(args); err != nil {
		return fileOptionsResult{}, fmt.Errorf("failed to parse file options: %w", err)
	}

	translated := args
	var mounts []bindMount

	if *baseFile != "" {
		inputDir := filepath.Dir(*baseFile)
		newBaseFile := filepath.Join(inputDataDir, filepath.Base(*baseFile))
		translated = replaceOptionValue(translated, baseFileOption, newBaseFile)

		// Saving in place or with a suffix writes back into the input
		// directory, so only mount it read-only otherwise.
		readonly := !(*save || *saveSuffix != "")
		mounts = append(mounts, bindMount{source: inputDir, target: inputDataDir, readonly: readonly})
	}

	if *saveToFile != "" {
		outputDir := filepath.Dir(*saveToFile)
		newSaveFile := filepath.Join(outputDataDir, filepath.Base(*saveToFile))
		translated = replaceOptionValue(translated, saveToFileOption, newSaveFile)
		mounts = append(mounts, bindMount{source: outputDir, target: outputDataDir})
	}

	mountOpts := make([]string, len(mounts))
	for i, mount := range mounts {
		mountOpts[i] = mount.mountOptionString()
	}

	return fileOptionsResult{
		MountOpts:      strings.Join(mountOpts, " "),
		TranslatedArgs: strings.Join(translated, " "),
	}, nil
}

// replaceOptionValue replaces the value of one long-form option in the raw
// argument list, handling both "--option value" and "--option=value" forms.
// Options parsed with StringArray semantics must not be replaced this way,
// since every occurrence would get the same value.
func replaceOptionValue(args []string, option, newValue string) []string {
	newArgs := make([]string, 0, len(args))
	replaceNext := false
	for _, arg := range args {
		switch {
		case replaceNext:
			newArgs = append(newArgs, newValue)
			replaceNext = false
		case strings.HasPrefix(arg, "--") && strings.Contains(arg, "="):
			name, _, _ := strings.Cut(arg, "=")
			if name == option {
				newArgs = append(newArgs, option+"="+newValue)
			} else {
				newArgs = append(newArgs, arg)
			}
		default:
			if arg == option {
				replaceNext = true
			}
			newArgs = append(newArgs, arg)
		}
	}
	return newArgs
}
