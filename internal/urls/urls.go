// Package urls holds the documentation links printed by nodecfg.
package urls

const docsBase = "https://muurk.github.io/nodecfg/"

const (
	// GettingStarted covers the config server and a first wizard session.
	GettingStarted = docsBase + "getting-started/"

	// ConfigFormat documents metadata, instances, default rules and
	// schedule triggers.
	ConfigFormat = docsBase + "reference/config-format/"

	// Discovery explains the mDNS advertisement nodes must publish.
	Discovery = docsBase + "guides/discovery/"

	// TroubleshootingGuide lists upload and status errors.
	TroubleshootingGuide = docsBase + "troubleshooting/"
)
