package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SelfAddress is the target address that always means the local node.
const SelfAddress = "127.0.0.1"

// CommandSet is the value side of a target catalog entry: either a flat list
// of commands or, for IR blasters, a map of remote name to its keys.
type CommandSet struct {
	Commands []string
	Remotes  map[string][]string
}

// Has reports whether cmd is in the flat command list.
func (c CommandSet) Has(cmd string) bool {
	for _, have := range c.Commands {
		if have == cmd {
			return true
		}
	}
	return false
}

// HasKey reports whether the remote declares key.
func (c CommandSet) HasKey(remote, key string) bool {
	for _, have := range c.Remotes[remote] {
		if have == key {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts an array of commands or an object of remotes.
func (c *CommandSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '[':
		return json.Unmarshal(data, &c.Commands)
	case '{':
		return json.Unmarshal(data, &c.Remotes)
	case 'n':
		return nil
	default:
		return fmt.Errorf("unsupported command set: %s", string(data))
	}
}

// MarshalJSON emits the same shape that was decoded.
func (c CommandSet) MarshalJSON() ([]byte, error) {
	if c.Remotes != nil {
		return json.Marshal(c.Remotes)
	}
	if c.Commands == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Commands)
}

// Entry is one legal target instance with its commands.
type Entry struct {
	Label      string
	InstanceID string
	Nickname   string
	Type       string
	Set        CommandSet
}

// Label formats an entry label as "<id>-<nickname> (<type>)".
func Label(id, nickname, typ string) string {
	return fmt.Sprintf("%s-%s (%s)", id, nickname, typ)
}

// ParseLabel splits an entry label. Labels that do not follow the instance
// format, such as "ir_key", return ok=false.
func ParseLabel(label string) (id, nickname, typ string, ok bool) {
	open := strings.LastIndex(label, " (")
	if open < 0 || !strings.HasSuffix(label, ")") {
		return "", "", "", false
	}
	typ = label[open+2 : len(label)-1]
	head := label[:open]
	dash := strings.Index(head, "-")
	if dash < 0 {
		return "", "", "", false
	}
	return head[:dash], head[dash+1:], typ, true
}

// Address is one named target address.
type Address struct {
	Name string
	IP   string
}

// TargetCatalog lists every known node and the commands its instances accept.
type TargetCatalog struct {
	addresses map[string]string
	nodes     map[string]map[string]CommandSet
}

// NewTargetCatalog returns an empty catalog.
func NewTargetCatalog() *TargetCatalog {
	return &TargetCatalog{
		addresses: make(map[string]string),
		nodes:     make(map[string]map[string]CommandSet),
	}
}

// ParseTargets decodes the wire form:
//
//	{"addresses": {"Kitchen": "192.168.1.50"},
//	 "192.168.1.50": {"device1-Lamp (dimmer)": ["enable", "turn_on"]}}
func ParseTargets(data []byte) (*TargetCatalog, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse target catalog: %w", err)
	}

	tc := NewTargetCatalog()
	for key, body := range raw {
		if key == "addresses" {
			if err := json.Unmarshal(body, &tc.addresses); err != nil {
				return nil, fmt.Errorf("failed to parse target addresses: %w", err)
			}
			if tc.addresses == nil {
				tc.addresses = make(map[string]string)
			}
			continue
		}
		var node map[string]CommandSet
		if err := json.Unmarshal(body, &node); err != nil {
			return nil, fmt.Errorf("failed to parse target node %s: %w", key, err)
		}
		tc.nodes[key] = node
	}
	return tc, nil
}

// ParseTargetsYAML decodes the same shape written as YAML.
func ParseTargetsYAML(data []byte) (*TargetCatalog, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse target catalog: %w", err)
	}
	if raw == nil {
		return NewTargetCatalog(), nil
	}
	// yaml.v3 decodes nested mappings as map[string]any, so the document
	// re-encodes cleanly as JSON.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse target catalog: %w", err)
	}
	return ParseTargets(data)
}

// LoadTargets reads a target catalog file, YAML or JSON by extension.
func LoadTargets(path string) (*TargetCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read target catalog: %w", err)
	}
	if isYAML(path) {
		return ParseTargetsYAML(data)
	}
	return ParseTargets(data)
}

// MarshalJSON emits the wire form.
func (tc *TargetCatalog) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(tc.nodes)+1)
	out["addresses"] = tc.addresses
	for ip, node := range tc.nodes {
		out[ip] = node
	}
	return json.Marshal(out)
}

// Addresses lists the named addresses sorted by display name.
func (tc *TargetCatalog) Addresses() []Address {
	if tc == nil {
		return nil
	}
	out := make([]Address, 0, len(tc.addresses))
	for name, ip := range tc.addresses {
		out = append(out, Address{Name: name, IP: ip})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasAddress reports whether ip is a known node.
func (tc *TargetCatalog) HasAddress(ip string) bool {
	if tc == nil {
		return false
	}
	if _, ok := tc.nodes[ip]; ok {
		return true
	}
	for _, known := range tc.addresses {
		if known == ip {
			return true
		}
	}
	return false
}

// AddressOf returns the IP registered under name.
func (tc *TargetCatalog) AddressOf(name string) (string, bool) {
	if tc == nil || name == "" {
		return "", false
	}
	ip, ok := tc.addresses[name]
	return ip, ok
}

// AddAddress registers a named address, replacing any previous mapping for
// the name.
func (tc *TargetCatalog) AddAddress(name, ip string) {
	tc.addresses[name] = ip
}

// SetNode replaces the entries published by the node at ip.
func (tc *TargetCatalog) SetNode(ip string, entries map[string]CommandSet) {
	tc.nodes[ip] = entries
}

// Node returns the entries published by the node at ip in instance order.
func (tc *TargetCatalog) Node(ip string) ([]Entry, bool) {
	if tc == nil {
		return nil, false
	}
	node, ok := tc.nodes[ip]
	if !ok {
		return nil, false
	}
	entries := make([]Entry, 0, len(node))
	for label, set := range node {
		e := Entry{Label: label, Set: set}
		if id, nick, typ, ok := ParseLabel(label); ok {
			e.InstanceID, e.Nickname, e.Type = id, nick, typ
		}
		entries = append(entries, e)
	}
	sortEntries(entries)
	return entries, true
}

// sortEntries orders devices before sensors, then by instance number, with
// synthetic entries last.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ci, ni, oki := instanceOrder(entries[i].InstanceID)
		cj, nj, okj := instanceOrder(entries[j].InstanceID)
		if oki != okj {
			return oki
		}
		if !oki {
			return entries[i].Label < entries[j].Label
		}
		if ci != cj {
			return ci < cj
		}
		return ni < nj
	})
}

func instanceOrder(id string) (int, int, bool) {
	c, ok := CategoryOf(id)
	if !ok {
		return 0, 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, string(c)))
	if err != nil {
		return 0, 0, false
	}
	if c == Sensor {
		return 1, n, true
	}
	return 0, n, true
}
