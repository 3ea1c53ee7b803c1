package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/muurk/nodecfg/internal/rules"
)

const metadataJSON = `{
  "devices": {
    "dimmer": {
      "class_name": "Tplink",
      "config_name": "dimmer",
      "config_template": {"_type": "dimmer", "nickname": "placeholder", "ip": "placeholder", "default_rule": "placeholder", "schedule": {}},
      "rule_limits": [1, 100],
      "rule_prompt": "int_range"
    },
    "api-target": {
      "class_name": "ApiTarget",
      "config_name": "api-target",
      "config_template": {"_type": "api-target", "nickname": "placeholder", "ip": "placeholder", "default_rule": "placeholder"},
      "rule_prompt": "api_target"
    }
  },
  "sensors": {
    "si7021": {
      "class_name": "Thermostat",
      "config_name": "si7021",
      "config_template": {"_type": "si7021", "nickname": "placeholder", "units": "placeholder", "tolerance": 1.5, "targets": []},
      "rule_limits": [18, 27],
      "rule_prompt": "thermostat"
    }
  },
  "ir_remotes": {"tv": ["power", "vol_up"]}
}`

func TestParseMetadata(t *testing.T) {
	m, err := ParseMetadata([]byte(metadataJSON))
	if err != nil {
		t.Fatalf("ParseMetadata() error = %v", err)
	}

	meta, ok := m.Lookup(Device, "dimmer")
	if !ok {
		t.Fatal("Lookup(dimmer) not found")
	}
	if meta.ConfigTemplate["ip"] != "" || meta.ConfigTemplate["nickname"] != "" {
		t.Errorf("placeholders not rewritten: %v", meta.ConfigTemplate)
	}
	if meta.Variant() != rules.IntRange {
		t.Errorf("Variant() = %v, want int_range", meta.Variant())
	}
	if meta.Limits() != [2]float64{1, 100} {
		t.Errorf("Limits() = %v", meta.Limits())
	}

	if _, ok := m.Lookup(Sensor, "dimmer"); ok {
		t.Error("Lookup should be scoped by category")
	}
	if got := m.Types(Device); !reflect.DeepEqual(got, []string{"api-target", "dimmer"}) {
		t.Errorf("Types(Device) = %v", got)
	}
	if got := m.RemoteKeys("tv"); !reflect.DeepEqual(got, []string{"power", "vol_up"}) {
		t.Errorf("RemoteKeys(tv) = %v", got)
	}
}

func TestTemplateIsCopy(t *testing.T) {
	m, err := ParseMetadata([]byte(metadataJSON))
	if err != nil {
		t.Fatalf("ParseMetadata() error = %v", err)
	}
	meta, _ := m.Lookup(Device, "dimmer")

	tmpl := meta.Template()
	tmpl["ip"] = "10.0.0.1"
	tmpl["schedule"].(map[string]any)["08:00"] = 5

	again := meta.Template()
	if again["ip"] != "" {
		t.Errorf("template mutated through copy: ip = %v", again["ip"])
	}
	if len(again["schedule"].(map[string]any)) != 0 {
		t.Error("nested template map mutated through copy")
	}
}

func TestLoadMetadataYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metadata.yaml")
	data := []byte(`devices:
  relay:
    class_name: Relay
    config_name: relay
    config_template:
      _type: relay
      nickname: placeholder
      pin: placeholder
    rule_prompt: on_off
sensors: {}
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("LoadMetadata() error = %v", err)
	}
	meta, ok := m.Lookup(Device, "relay")
	if !ok {
		t.Fatal("relay not loaded")
	}
	if meta.ConfigTemplate["pin"] != "" {
		t.Errorf("pin = %v, want empty", meta.ConfigTemplate["pin"])
	}
	if meta.Variant() != rules.OnOff {
		t.Errorf("Variant() = %v, want on_off", meta.Variant())
	}
}

const targetsJSON = `{
  "addresses": {"Kitchen": "192.168.1.50", "Attic": "192.168.1.60"},
  "192.168.1.50": {
    "device1-Lamp (dimmer)": ["enable", "disable", "turn_on", "turn_off"],
    "sensor1-Motion (pir)": ["enable", "trigger_sensor"],
    "ir_key": {"tv": ["power", "mute"]}
  }
}`

func TestParseTargets(t *testing.T) {
	tc, err := ParseTargets([]byte(targetsJSON))
	if err != nil {
		t.Fatalf("ParseTargets() error = %v", err)
	}

	addrs := tc.Addresses()
	if len(addrs) != 2 || addrs[0].Name != "Attic" || addrs[1].IP != "192.168.1.50" {
		t.Errorf("Addresses() = %v", addrs)
	}
	if !tc.HasAddress("192.168.1.60") || tc.HasAddress("10.0.0.1") {
		t.Error("HasAddress() mismatch")
	}

	entries, ok := tc.Node("192.168.1.50")
	if !ok || len(entries) != 3 {
		t.Fatalf("Node() = %v, %v", entries, ok)
	}
	if entries[0].InstanceID != "device1" || entries[0].Nickname != "Lamp" || entries[0].Type != "dimmer" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].InstanceID != "sensor1" {
		t.Errorf("entries[1] = %+v", entries[1])
	}
	if entries[2].Label != "ir_key" || !entries[2].Set.HasKey("tv", "mute") {
		t.Errorf("entries[2] = %+v", entries[2])
	}

	out, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	again, err := ParseTargets(out)
	if err != nil {
		t.Fatalf("re-parse error = %v", err)
	}
	if !reflect.DeepEqual(again, tc) {
		t.Error("target catalog did not survive re-encoding")
	}
}

func TestLoadTargetsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.yml")
	data := []byte(`addresses:
  Kitchen: 192.168.1.50
"192.168.1.50":
  device1-Lamp (dimmer): [enable, turn_on]
  ir_key:
    tv: [power]
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	tc, err := LoadTargets(path)
	if err != nil {
		t.Fatalf("LoadTargets() error = %v", err)
	}
	entries, ok := tc.Node("192.168.1.50")
	if !ok || len(entries) != 2 {
		t.Fatalf("Node() = %v, %v", entries, ok)
	}
	if !entries[0].Set.Has("turn_on") || !entries[1].Set.HasKey("tv", "power") {
		t.Errorf("entries = %+v", entries)
	}
}

func TestParseLabel(t *testing.T) {
	id, nick, typ, ok := ParseLabel("device12-Living-room lamp (dimmer)")
	if !ok || id != "device12" || nick != "Living-room lamp" || typ != "dimmer" {
		t.Errorf("ParseLabel() = %q %q %q %v", id, nick, typ, ok)
	}
	if _, _, _, ok := ParseLabel("ir_key"); ok {
		t.Error("ParseLabel(ir_key) should not parse")
	}
	if got := Label("sensor1", "Door", "pir"); got != "sensor1-Door (pir)" {
		t.Errorf("Label() = %q", got)
	}
}

func localNode() LocalNode {
	return LocalNode{
		Instances: []LocalInstance{
			{ID: "device1", Nickname: "Relay", Type: "relay"},
			{ID: "device2", Nickname: "Trigger", Type: "api-target"},
			{ID: "device3", Nickname: "Other", Type: "api-target"},
			{ID: "sensor1", Nickname: "Temp", Type: "si7021"},
			{ID: "sensor2", Nickname: "Motion", Type: "pir"},
		},
		IRRemotes: map[string][]string{"tv": {"power"}},
	}
}

func TestSelfEntries(t *testing.T) {
	entries := SelfEntries(localNode(), "api-target")
	byID := make(map[string]CommandSet)
	for _, e := range entries {
		byID[e.InstanceID] = e.Set
	}

	for _, id := range []string{"device2", "device3"} {
		set := byID[id]
		if set.Has("turn_on") || set.Has("turn_off") {
			t.Errorf("%s: same-type instance kept turn_on/turn_off: %v", id, set.Commands)
		}
		if !set.Has("enable") {
			t.Errorf("%s: lost enable", id)
		}
	}
	if relay := byID["device1"]; !relay.Has("turn_on") || !relay.Has("turn_off") {
		t.Errorf("device1 should keep turn_on/turn_off: %v", relay.Commands)
	}
	if byID["sensor1"].Has("trigger_sensor") {
		t.Error("si7021 should not be triggerable")
	}
	if !byID["sensor2"].Has("trigger_sensor") {
		t.Error("pir should be triggerable")
	}

	last := entries[len(entries)-1]
	if last.Label != IRKeyLabel || !last.Set.HasKey("tv", "power") {
		t.Errorf("missing ir_key entry: %+v", last)
	}
}

func TestSelfEntriesWithoutRemotes(t *testing.T) {
	local := localNode()
	local.IRRemotes = nil
	for _, e := range SelfEntries(local, "api-target") {
		if e.Label == IRKeyLabel {
			t.Error("ir_key entry without enabled remotes")
		}
	}
}

func TestResolver(t *testing.T) {
	tc, err := ParseTargets([]byte(targetsJSON))
	if err != nil {
		t.Fatalf("ParseTargets() error = %v", err)
	}
	local := localNode()
	r := NewResolver(tc, func() LocalNode { return local }, "api-target")

	tests := []struct {
		rule string
		want bool
	}{
		{"192.168.1.50 turn_on device1", true},
		{"192.168.1.50 trigger_sensor sensor1", true},
		{"192.168.1.50 trigger_sensor device1", false},
		{"192.168.1.50 ir_key tv mute", true},
		{"192.168.1.50 ir_key tv volume", false},
		{"127.0.0.1 turn_on device1", true},
		{"127.0.0.1 turn_on device3", false},
		{"127.0.0.1 ir_key tv power", true},
		{"192.168.1.99 enable device1", false},
	}
	for _, tt := range tests {
		rule, _ := rules.ParseRemote(rules.Value(tt.rule))
		if got := r.LegalCommand(rule); got != tt.want {
			t.Errorf("LegalCommand(%q) = %v, want %v", tt.rule, got, tt.want)
		}
	}

	if !r.KnownTarget(SelfAddress) || !r.KnownTarget("192.168.1.60") || r.KnownTarget("10.1.1.1") {
		t.Error("KnownTarget() mismatch")
	}

	// Self entries follow the live document
	local.Instances[0].Type = "api-target"
	rule, _ := rules.ParseRemote("127.0.0.1 turn_on device1")
	if r.LegalCommand(rule) {
		t.Error("self entries should be re-derived after a type change")
	}

	spec := rules.Spec{Variant: rules.RemoteCommand, Commands: r}
	if got := rules.Check(spec, "192.168.1.50 turn_off device1"); got != rules.Valid {
		t.Errorf("Check() via resolver = %v, want valid", got)
	}
}
