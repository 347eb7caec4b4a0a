// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for cfs-config-util.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"cfs-config-util/internal/environment"
	"cfs-config-util/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug logging
	verbose bool

	// envConfig holds the loaded environment configuration.
	envConfig *environment.Config

	// logger is the shared logger for all commands.
	logger = log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "cfs-config-util",
		Short: "Create, modify, and assign CFS configurations",
		Long: TitleStyle.Render("cfs-config-util") + SubtitleStyle.Render(" - CFS configuration management utility") + `

cfs-config-util modifies configurations in the Configuration Framework
Service (CFS): it adds, updates, or removes configuration layers that
reference Ansible playbooks in VCS repositories, assigns the resulting
configurations to managed components, and optionally waits for those
components to finish configuring.

` + SubtitleStyle.Render("Examples:") + `
  cfs-config-util update-configs --product sat:2.2.16 \
      --base-config ncn-personalization --save
  cfs-config-util update-configs --clone-url https://vcs.local/vcs/cray/repo.git \
      --git-branch main --save-to-cfs my-config
  cfs-config-util update-components --query role=Management --clear-state`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(updateConfigsCmd)
	rootCmd.AddCommand(updateComponentsCmd)
	rootCmd.AddCommand(processFileOptionsCmd)
	rootCmd.AddCommand(passthroughHelpCmd)
	rootCmd.AddCommand(configCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig loads the environment configuration and applies the
// logging level.
func initRootConfig() {
	cfg, err := environment.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, verbose))
		cfg = environment.DefaultConfig()
	}
	envConfig = cfg

	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
