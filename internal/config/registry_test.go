package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/units"
)

func TestGetConfigDir(t *testing.T) {
	t.Run("override", func(t *testing.T) {
		dir := t.TempDir()
		t.Setenv(DirEnvVar, dir)
		got, err := GetConfigDir()
		if err != nil || got != dir {
			t.Fatalf("GetConfigDir() = %q, %v, want %q", got, err, dir)
		}
	})

	t.Run("platform default", func(t *testing.T) {
		t.Setenv(DirEnvVar, "")
		if runtime.GOOS == "linux" {
			t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		}
		configDir, err := GetConfigDir()
		if err != nil {
			t.Skipf("no user config dir: %v", err)
		}
		if filepath.Base(configDir) != "nodecfg" {
			t.Errorf("GetConfigDir() = %v, should end in nodecfg", configDir)
		}
		if runtime.GOOS == "linux" && configDir != filepath.Join("/tmp/xdg", "nodecfg") {
			t.Errorf("GetConfigDir() ignored XDG_CONFIG_HOME: %v", configDir)
		}

		configPath, err := GetConfigPath()
		if err != nil {
			t.Fatalf("GetConfigPath() error = %v", err)
		}
		if filepath.Base(configPath) != "config.yaml" {
			t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
		}
	})
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("Version = %v, want 1", reg.Version)
	}
	if reg.Nodes == nil || reg.Preferences == nil {
		t.Fatal("NewRegistry() left maps or preferences nil")
	}
	if reg.Preferences.DebounceWindow() != 2*time.Second {
		t.Errorf("DebounceWindow() = %v, want 2s", reg.Preferences.DebounceWindow())
	}
	if reg.Preferences.Units() != units.Celsius {
		t.Errorf("Units() = %v, want celsius", reg.Preferences.Units())
	}
}

func TestPreferences(t *testing.T) {
	tests := []struct {
		name   string
		prefs  *Preferences
		units  units.Units
		window time.Duration
	}{
		{"nil", nil, units.Celsius, 0},
		{"fahrenheit", &Preferences{DefaultUnits: "Fahrenheit", DebounceSeconds: 0.5}, units.Fahrenheit, 500 * time.Millisecond},
		{"unknown units", &Preferences{DefaultUnits: "rankine", DebounceSeconds: -1}, units.Celsius, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.prefs.Units(); got != tt.units {
				t.Errorf("Units() = %v, want %v", got, tt.units)
			}
			if got := tt.prefs.DebounceWindow(); got != tt.window {
				t.Errorf("DebounceWindow() = %v, want %v", got, tt.window)
			}
		})
	}
}

func TestRegistryNodes(t *testing.T) {
	reg := NewRegistry()

	n1 := reg.EnsureNode("Office")
	if n1 == nil || reg.EnsureNode("Office") != n1 {
		t.Fatal("EnsureNode() should return the same entry for the same id")
	}

	before := time.Now()
	reg.RecordNode("Office", "192.168.1.40", SourceMDNS)
	reg.RecordNode("Kitchen", "192.168.1.41", SourceManual)

	node := reg.GetNode("Office")
	if node.Address != "192.168.1.40" || node.Source != SourceMDNS {
		t.Errorf("node = %+v", node)
	}
	if node.LastSeen.Before(before) {
		t.Error("LastSeen not updated")
	}

	if got := reg.NodeIDs(); len(got) != 2 || got[0] != "Kitchen" || got[1] != "Office" {
		t.Errorf("NodeIDs() = %v", got)
	}

	reg.RemoveNode("Kitchen")
	reg.RemoveNode("Unknown")
	if reg.GetNode("Kitchen") != nil || len(reg.Nodes) != 1 {
		t.Error("RemoveNode() did not forget Kitchen")
	}
}

func TestRegistryMergeInto(t *testing.T) {
	tc, err := catalog.ParseTargets([]byte(`{"addresses": {"Garage": "192.168.1.50"}}`))
	if err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry()
	reg.RecordNode("Office", "192.168.1.40", SourceSubmit)
	reg.RecordNode("Garage", "192.168.1.99", SourceManual) // name already known
	reg.RecordNode("Shed", "192.168.1.50", SourceManual)   // address already known
	reg.EnsureNode("Blank")

	reg.MergeInto(tc)

	got := map[string]string{}
	for _, a := range tc.Addresses() {
		got[a.Name] = a.IP
	}
	want := map[string]string{"Garage": "192.168.1.50", "Office": "192.168.1.40"}
	if len(got) != len(want) {
		t.Fatalf("Addresses() = %v, want %v", got, want)
	}
	for name, ip := range want {
		if got[name] != ip {
			t.Errorf("%s = %q, want %q", name, got[name], ip)
		}
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	reg := NewRegistry()
	reg.RecordNode("Office", "192.168.1.40", SourceSubmit).Instances = 3
	reg.Preferences.DefaultUnits = "kelvin"
	reg.Preferences.DefaultAuth = &AuthPrefs{Username: "admin"}

	if err := reg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# nodecfg configuration file") {
		t.Error("saved file missing header comment")
	}
	if entries, _ := os.ReadDir(filepath.Dir(path)); len(entries) != 1 {
		t.Errorf("temporary file left behind: %d entries", len(entries))
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	node := loaded.GetNode("Office")
	if node == nil || node.Address != "192.168.1.40" || node.Instances != 3 {
		t.Errorf("loaded node = %+v", node)
	}
	if loaded.Preferences.Units() != units.Kelvin || loaded.Preferences.DefaultAuth.Username != "admin" {
		t.Errorf("loaded preferences = %+v", loaded.Preferences)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	reg, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	if err != nil || reg == nil || reg.Version != 1 {
		t.Fatalf("LoadFile(missing) = %v, %v", reg, err)
	}

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"minimal", "version: 1\n", false},
		{"wrong version", "version: 2\n", true},
		{"bad yaml", "version: [\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			reg, err := LoadFile(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadFile() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (reg.Nodes == nil || reg.Preferences == nil) {
				t.Error("LoadFile() left defaults unset")
			}
		})
	}
}
