package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/muurk/nodecfg/internal/logging"
)

const (
	appName    = "nodecfg"
	configFile = "config.yaml"

	// DirEnvVar overrides the configuration directory.
	DirEnvVar = "NODECFG_CONFIG_DIR"

	registryVersion = 1
)

var (
	loadOnce   sync.Once
	loaded     *Registry
	loadErr    error
	writeMutex sync.Mutex
)

const fileHeader = `# nodecfg configuration file
# Known nodes and editor preferences. Config server passwords are never
# stored here.

`

// GetConfigDir returns $NODECFG_CONFIG_DIR if set, else the nodecfg
// directory under the platform's user config dir.
func GetConfigDir() (string, error) {
	if dir := os.Getenv(DirEnvVar); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appName), nil
}

// GetConfigPath returns the full path of config.yaml.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// LoadRegistry loads the registry from the default path once per process.
func LoadRegistry() (*Registry, error) {
	loadOnce.Do(func() {
		path, err := GetConfigPath()
		if err != nil {
			loadErr = err
			return
		}
		loaded, loadErr = LoadFile(path)
	})
	return loaded, loadErr
}

// LoadFile reads a registry. A missing file is not an error and yields
// NewRegistry().
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("No config file, using defaults", zap.String("path", path))
		return NewRegistry(), nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	reg := &Registry{}
	if err := yaml.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if reg.Version != registryVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", reg.Version, registryVersion)
	}
	reg.fillDefaults()

	logging.Debug("Loaded registry", zap.String("path", path), zap.Int("nodes", len(reg.Nodes)))
	return reg, nil
}

func (r *Registry) fillDefaults() {
	if r.Nodes == nil {
		r.Nodes = make(map[string]*Node)
	}
	if r.Preferences == nil {
		r.Preferences = defaultPreferences()
	}
}

// Save writes the registry to the default path, creating the directory
// with user-only permissions.
func (r *Registry) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return r.SaveFile(path)
}

// SaveFile writes the registry to path through a temporary file in the
// same directory, so a crash never leaves a truncated config behind.
func (r *Registry) SaveFile(path string) error {
	writeMutex.Lock()
	defer writeMutex.Unlock()

	body, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+configFile+"-*")
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.WriteString(fileHeader); err == nil {
		_, err = tmp.Write(body)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), 0o600)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	logging.Debug("Saved registry", zap.String("path", path))
	return nil
}
