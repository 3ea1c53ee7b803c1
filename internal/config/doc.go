// Package config manages the nodecfg user configuration file.
//
// The file is YAML and records the nodes the user has configured or
// discovered (node id to last known address) plus editor preferences such
// as the config server URL, preferred temperature units and the location
// search debounce window.
//
// # Configuration File Location
//
// $NODECFG_CONFIG_DIR/config.yaml when the variable is set, otherwise
// nodecfg/config.yaml under os.UserConfigDir:
//
//   - Linux: $XDG_CONFIG_HOME or $HOME/.config
//   - macOS: $HOME/Library/Application Support
//   - Windows: %AppData%
//
// Config server passwords are never stored.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.RecordNode("Office", "192.168.1.40", config.SourceSubmit)
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// Registered nodes double as a fallback address book for remote-command
// rules; see Registry.MergeInto.
package config
