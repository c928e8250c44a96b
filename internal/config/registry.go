package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "btscout"
	configFile = "config.yaml"
)

// fileMu serializes reads and writes of settings files within the process.
var fileMu sync.Mutex

// GetConfigDir returns the per-user directory btscout keeps its settings in:
//   - Windows: %LOCALAPPDATA%\btscout
//   - everything else: $XDG_CONFIG_HOME/btscout, else ~/.config/btscout
//
// macOS uses the XDG layout too, so dotfile setups carry over.
func GetConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			profile := os.Getenv("USERPROFILE")
			if profile == "" {
				return "", errors.New("neither LOCALAPPDATA nor USERPROFILE is set")
			}
			base = filepath.Join(profile, "AppData", "Local")
		}
		return filepath.Join(base, appName), nil
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && runtime.GOOS != "darwin" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// GetConfigPath returns where Load and Save look by default.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads the settings file at the default path.
func Load() (*Settings, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("config path: %w", err)
	}
	return LoadFile(path)
}

// LoadFile reads settings from path. A missing file yields defaults, and
// keys absent from the file keep their default values.
func LoadFile(path string) (*Settings, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	settings := NewSettings()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return settings, nil
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if settings.Devices == nil {
		settings.Devices = make(map[string]*KnownDevice)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings in %s: %w", path, err)
	}
	return settings, nil
}

// Save writes the settings to the default path.
func (s *Settings) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("config path: %w", err)
	}
	return s.SaveFile(path)
}

const fileBanner = "# btscout settings. Durations use Go syntax, e.g. \"500ms\" or \"40s\".\n\n"

// SaveFile writes the settings to path through a temporary file in the same
// directory, so a crash never leaves a truncated file behind.
func (s *Settings) SaveFile(path string) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, configFile+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.WriteString(fileBanner)
	if err == nil {
		_, err = tmp.Write(data)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
