package config

import "time"

// Default tuning values. These mirror the firmware the monitor ships against:
// the hub answers /metrics well under a second on a quiet network, and five
// ports is the largest CP-02 variant.
const (
	// DefaultRefreshIntervalMS is the default telemetry poll interval.
	DefaultRefreshIntervalMS = 1000

	// MinRefreshIntervalMS is the floor for the poll interval. Values below
	// this are clamped to avoid hammering the device.
	MinRefreshIntervalMS = 500

	// DefaultFallbackURL is the compiled-in metrics URL used when the
	// settings file is unreadable and no device has ever been discovered.
	DefaultFallbackURL = "http://192.168.1.1/metrics"

	// DefaultErrorThreshold is the number of consecutive fetch failures
	// after which the HTTP client is discarded and rebuilt.
	DefaultErrorThreshold = 5

	// DefaultScanWorkers is the number of concurrent shard workers used by
	// the network scanner.
	DefaultScanWorkers = 3
)

// Settings represents the entire settings file.
type Settings struct {
	Version     int          `yaml:"version"`
	Device      *DeviceState `yaml:"device,omitempty"`
	Preferences *Preferences `yaml:"preferences,omitempty"`
}

// DeviceState is the persisted address-book record: the last address at
// which a probe confirmed a CP-02 charging hub. Absent until the first
// confirmed discovery.
type DeviceState struct {
	Address       string    `yaml:"address,omitempty"`        // Last confirmed IPv4 address
	LastConfirmed time.Time `yaml:"last_confirmed,omitempty"` // When that probe succeeded
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	RefreshIntervalMS int    `yaml:"refresh_interval_ms"`      // Telemetry poll interval
	FallbackURL       string `yaml:"fallback_url,omitempty"`   // Metrics URL used before discovery succeeds
	NetworkPrefix     string `yaml:"network_prefix,omitempty"` // Scan prefix, e.g. "192.168.1"
	ErrorThreshold    int    `yaml:"error_threshold"`          // Consecutive errors before client rebuild
	ScanWorkers       int    `yaml:"scan_workers"`             // Concurrent scan shards
}

// NewSettings creates Settings with default values.
func NewSettings() *Settings {
	return &Settings{
		Version: 1,
		Preferences: &Preferences{
			RefreshIntervalMS: DefaultRefreshIntervalMS,
			FallbackURL:       DefaultFallbackURL,
			ErrorThreshold:    DefaultErrorThreshold,
			ScanWorkers:       DefaultScanWorkers,
		},
	}
}

// RefreshInterval returns the poll interval clamped to the floor.
func (p *Preferences) RefreshInterval() time.Duration {
	ms := p.RefreshIntervalMS
	if ms < MinRefreshIntervalMS {
		ms = MinRefreshIntervalMS
	}
	return time.Duration(ms) * time.Millisecond
}
