// Package catalog holds the read-only lookup tables the editor is seeded with.
//
// The metadata catalog maps each device and sensor type to its config
// template, rule variant and rule limits. The target catalog lists every
// known node on the network together with the instances it exposes and the
// commands each instance accepts.
//
// Both catalogs are injected into the document at construction time; nothing
// in this package mutates a document. Legal remote commands for the local
// node ("self") are derived from a LocalNode snapshot supplied by the caller:
//
//	entries := targets.Commands(catalog.SelfAddress, doc.LocalNode(), "api-target")
//
// Files may be JSON or YAML, selected by extension.
package catalog
