package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/config"
	"github.com/muurk/nodecfg/internal/deviceconfig"
	"github.com/muurk/nodecfg/internal/discovery"
	"github.com/muurk/nodecfg/internal/document"
	"github.com/muurk/nodecfg/internal/logging"
	"github.com/muurk/nodecfg/internal/units"
)

// PasswordEnvVar holds the config server password. It is never stored.
const PasswordEnvVar = "NODECFG_PASSWORD"

// Common flags (persistent on root)
var (
	serverURL     string
	nodeIP        string
	username      string
	metadataPath  string
	targetsPath   string
	scanTimeout   int
	httpTimeout   int
	preferredUnit string
)

// registry is loaded by setup before any command runs
var registry = config.NewRegistry()

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Config server URL (default from preferences)")
	rootCmd.PersistentFlags().StringVar(&nodeIP, "node", "", "Node IP address (skips discovery)")
	rootCmd.PersistentFlags().StringVar(&username, "user", "", "Config server username ($"+PasswordEnvVar+" holds the password)")
	rootCmd.PersistentFlags().StringVar(&metadataPath, "metadata", "", "Metadata catalog file, JSON or YAML (default: fetch from server)")
	rootCmd.PersistentFlags().StringVar(&targetsPath, "targets", "", "Target catalog file, JSON or YAML (default: fetch from server)")
	rootCmd.PersistentFlags().IntVar(&scanTimeout, "timeout", 0, "mDNS discovery timeout in seconds (default from preferences)")
	rootCmd.PersistentFlags().IntVar(&httpTimeout, "request-timeout", 0, "Config server request timeout in seconds (default 10)")
}

// applyPreferences fills flags the user did not set from the registry.
func applyPreferences(cmd *cobra.Command, prefs *config.Preferences) {
	if prefs == nil {
		return
	}
	flags := cmd.Flags()
	if !flags.Changed("server") && serverURL == "" {
		serverURL = prefs.ServerURL
	}
	if !flags.Changed("timeout") && scanTimeout <= 0 {
		scanTimeout = prefs.DiscoverTimeout
	}
	if !flags.Changed("user") && username == "" && prefs.DefaultAuth != nil {
		username = prefs.DefaultAuth.Username
	}
	preferredUnit = string(prefs.Units())
}

// newClient creates a config server client from the common flags.
func newClient() *deviceconfig.Client {
	client := deviceconfig.NewClient(serverURL)
	if username != "" {
		client.SetAuth(username, os.Getenv(PasswordEnvVar))
	}
	if httpTimeout > 0 {
		client.SetTimeout(time.Duration(httpTimeout) * time.Second)
	}
	return client
}

func discoverTimeout() time.Duration {
	if scanTimeout <= 0 {
		return discovery.DefaultScanTimeout
	}
	return time.Duration(scanTimeout) * time.Second
}

// catalogSource abstracts the server fetches so tests can substitute files.
type catalogSource interface {
	FetchMetadata(ctx context.Context) (*catalog.Metadata, error)
	FetchTargets(ctx context.Context) (*catalog.TargetCatalog, error)
}

// loadCatalogs reads the metadata and target catalogs from the given files,
// falling back to the server. A missing target catalog is not fatal: rules
// can still target the local node. Registered nodes are merged into the
// target addresses.
func loadCatalogs(ctx context.Context, src catalogSource, metaFile, targetsFile string, reg *config.Registry) (*catalog.Metadata, *catalog.TargetCatalog, error) {
	var (
		meta *catalog.Metadata
		err  error
	)
	if metaFile != "" {
		meta, err = catalog.LoadMetadata(metaFile)
	} else {
		meta, err = src.FetchMetadata(ctx)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load metadata catalog: %w", err)
	}

	var targets *catalog.TargetCatalog
	if targetsFile != "" {
		targets, err = catalog.LoadTargets(targetsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load target catalog: %w", err)
		}
	} else {
		targets, err = src.FetchTargets(ctx)
		if err != nil {
			logging.Warn("Target catalog unavailable, only local targets will be offered", zap.Error(err))
			targets = catalog.NewTargetCatalog()
		}
	}

	if reg != nil {
		reg.MergeInto(targets)
	}
	return meta, targets, nil
}

// readDocument loads a configuration file; "-" reads standard input.
func readDocument(path string, stdin io.Reader, meta *catalog.Metadata, targets *catalog.TargetCatalog) (*document.Document, error) {
	if path != "-" {
		return document.Load(path, meta, targets)
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return document.Parse(data, meta, targets)
}

// resolveNode picks the address to act on: the flag, a registered node id
// or address, in that order.
func resolveNode(arg, flag string, reg *config.Registry) (string, error) {
	switch {
	case arg == "" && flag != "":
		return flag, nil
	case arg == "":
		return "", fmt.Errorf("no node specified. Use --node or pass a node id or IP")
	}
	if reg != nil {
		if node := reg.GetNode(arg); node != nil && node.Address != "" {
			return node.Address, nil
		}
	}
	return arg, nil
}

// recordDiscovered remembers scanned nodes and adds them to the target
// catalog when one is given.
func recordDiscovered(nodes []*discovery.Node, reg *config.Registry, targets *catalog.TargetCatalog) {
	for _, n := range nodes {
		reg.RecordNode(n.ID, n.IP, config.SourceMDNS)
	}
	if targets != nil {
		added := discovery.MergeInto(targets, nodes)
		logging.Debug("Merged discovered nodes", zap.Int("added", added))
	}
	if len(nodes) > 0 {
		if err := reg.Save(); err != nil {
			logging.Warn("Failed to save registry", zap.Error(err))
		}
	}
}

func parseUnitsFlag(name, value string) (units.Units, error) {
	u, ok := units.ParseUnits(value)
	if !ok {
		return "", fmt.Errorf("invalid --%s value %q (use celsius, fahrenheit or kelvin)", name, value)
	}
	return u, nil
}
