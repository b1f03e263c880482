package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName      = "cp02-monitor"
	settingsFile = "config.yaml"
)

// DefaultPath returns the full path to the settings file under the
// OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/cp02-monitor or $HOME/.config/cp02-monitor
//   - macOS: $HOME/.config/cp02-monitor (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\cp02-monitor
func DefaultPath() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	default:
		// macOS, Linux and other Unix-like systems
		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome != "" {
			baseDir = filepath.Join(xdgConfigHome, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return filepath.Join(baseDir, settingsFile), nil
}

// Store owns the settings file: the persisted device address (the address
// book consulted by the scanner's fast path) and user preferences.
//
// All mutating methods commit to disk before returning. Writes go through a
// temporary file followed by a rename so a crash mid-write never leaves a
// corrupt or half-written file.
type Store struct {
	mu       sync.Mutex
	path     string
	settings *Settings
}

// Open loads the settings file at path. A missing file yields a Store with
// defaults and no error. An unreadable or malformed file also yields a
// usable Store with defaults, alongside the error, so callers can log the
// problem and fall back to the compiled-in defaults instead of aborting.
func Open(path string) (*Store, error) {
	s := &Store{path: path, settings: NewSettings()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read settings file: %w", err)
	}

	var loaded Settings
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return s, fmt.Errorf("failed to parse settings file: %w", err)
	}

	if loaded.Version != 1 {
		return s, fmt.Errorf("unsupported settings version: %d (expected 1)", loaded.Version)
	}

	if loaded.Preferences == nil {
		loaded.Preferences = NewSettings().Preferences
	}
	if loaded.Preferences.RefreshIntervalMS == 0 {
		loaded.Preferences.RefreshIntervalMS = DefaultRefreshIntervalMS
	}
	if loaded.Preferences.ErrorThreshold == 0 {
		loaded.Preferences.ErrorThreshold = DefaultErrorThreshold
	}
	if loaded.Preferences.ScanWorkers == 0 {
		loaded.Preferences.ScanWorkers = DefaultScanWorkers
	}
	if loaded.Preferences.FallbackURL == "" {
		loaded.Preferences.FallbackURL = DefaultFallbackURL
	}

	s.settings = &loaded
	return s, nil
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// LastAddress returns the last confirmed device address, or false if no
// device has ever been confirmed.
func (s *Store) LastAddress() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings.Device == nil || s.settings.Device.Address == "" {
		return "", false
	}
	return s.settings.Device.Address, true
}

// SetLastAddress records a confirmed device address and commits it durably
// before returning. A write with the already-stored address still refreshes
// the confirmation timestamp.
func (s *Store) SetLastAddress(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.Device = &DeviceState{
		Address:       addr,
		LastConfirmed: time.Now(),
	}
	return s.saveLocked()
}

// Preferences returns a copy of the current preferences.
func (s *Store) Preferences() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.settings.Preferences
}

// UpdatePreferences applies fn to the preferences and commits the result.
func (s *Store) UpdatePreferences(fn func(*Preferences)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.settings.Preferences)
	return s.saveLocked()
}

// saveLocked writes the settings to disk. Caller must hold s.mu.
func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := yaml.Marshal(s.settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	header := []byte(`# CP-02 Monitor settings.
# The device address is rewritten automatically whenever a network scan
# confirms a charging hub; edit preferences freely while the monitor is
# stopped.

`)
	data = append(header, data...)

	// Write to temporary file first, then rename into place (atomic on all
	// supported platforms).
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary settings file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save settings file: %w", err)
	}

	return nil
}
