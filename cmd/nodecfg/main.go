// Nodecfg is a configuration editor for networked IoT controller nodes.
//
// It discovers nodes on the LAN, edits their device and sensor
// configuration in an interactive wizard, validates configuration files
// offline and submits them through the config server.
//
// Usage:
//
//	nodecfg [command] [flags]
//
// Running without arguments launches the interactive wizard.
// See 'nodecfg --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/nodecfg/internal/config"
	"github.com/muurk/nodecfg/internal/deviceconfig"
	"github.com/muurk/nodecfg/internal/logging"
	"github.com/muurk/nodecfg/internal/ui"
	"github.com/muurk/nodecfg/internal/urls"
	"github.com/muurk/nodecfg/internal/version"
	"github.com/muurk/nodecfg/internal/wizard"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// Exit statuses, listed in the root command's help.
const (
	exitFailure     = 1
	exitInvalid     = 2
	exitAuth        = 3
	exitUnreachable = 4
	exitConflict    = 5
	exitNetwork     = 6
	exitServer      = 7
)

// exitCode maps a command error to the process exit status so scripts can
// tell a busy node from a bad file.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, wizard.ErrNotSubmittable):
		return exitInvalid
	case deviceconfig.IsAuthError(err):
		return exitAuth
	case deviceconfig.IsUnreachableError(err):
		return exitUnreachable
	case deviceconfig.IsConflictError(err):
		return exitConflict
	case deviceconfig.IsNetworkError(err):
		return exitNetwork
	case deviceconfig.IsHTTPError(err), deviceconfig.IsParseError(err):
		return exitServer
	}
	return exitFailure
}

var rootCmd = &cobra.Command{
	Use:   "nodecfg",
	Short: "IoT Node Configuration Editor",
	Long: `A configuration editor for networked IoT controller nodes.

Discovers nodes over mDNS, edits device and sensor instances, default rules
and schedules in an interactive wizard, and submits the result through the
config server. Configuration files can also be validated and submitted
without the wizard.

If no command is specified, the interactive wizard will launch automatically.

Exit status: 0 success, 1 other failure, 2 invalid configuration,
3 authentication failed, 4 node unreachable, 5 node filesystem busy,
6 network error, 7 unexpected server response.

Getting started: ` + urls.GettingStarted,
	Version:           version.Version,
	PersistentPreRunE: setup,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: run wizard when no subcommand provided
		return runWizard(cmd, args)
	},
}

var showDetails bool

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&showDetails, "details", false, "Show build details")
}

// setup initializes logging and the user registry before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	// Silent by default; set NODECFG_LOG_LEVEL=debug to see detailed logs
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	reg, err := config.LoadRegistry()
	if err != nil {
		logging.Warn("Using default settings", zap.Error(err))
		reg = config.NewRegistry()
	}
	registry = reg
	applyPreferences(cmd, reg.Preferences)
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		if showDetails {
			ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("nodecfg "+version.Version, version.Details())
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "nodecfg %s\n", version.Full())
	},
}
