package telemetry

import (
	"sync"
	"time"
)

// MaxPorts is the number of charging ports on a CP-02 hub.
const MaxPorts = 5

// portNames are the faceplate labels, indexed by port id.
var portNames = [MaxPorts]string{"A", "C1", "C2", "C3", "C4"}

// PortRecord is the parsed state of one charging port.
type PortRecord struct {
	ID        int    // Port id, 0..MaxPorts-1
	Name      string // Faceplate label ("A", "C1", ...)
	State     int    // Firmware port state code
	Protocol  int    // Fast-charge protocol code
	CurrentMA int    // Output current in milliamps
	VoltageMV int    // Output voltage in millivolts
	PowerW    float64
}

// ConnectivityState is the coarse status surfaced to the display.
type ConnectivityState int

const (
	// Disconnected: the network link is down.
	Disconnected ConnectivityState = iota
	// Connecting: link is up but no fetch has completed yet.
	Connecting
	// Connected: the last fetch succeeded.
	Connected
	// DataError: link is up but the last fetch failed.
	DataError
)

func (c ConnectivityState) String() string {
	switch c {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case DataError:
		return "data error"
	default:
		return "unknown"
	}
}

// Snapshot is a value copy of the model at one observation instant. The
// total is always the sum of the port powers in the same snapshot, never a
// mix of two parse passes.
type Snapshot struct {
	Ports        [MaxPorts]PortRecord
	TotalPowerW  float64
	Connectivity ConnectivityState
	UpdatedAt    time.Time
}

// Model is the canonical port state shared between the poller (writer) and
// the display (reader). The parser and the poller run on the owner's
// goroutine while the display reads on its own schedule, so access is
// guarded by a mutex and readers only ever see value copies.
type Model struct {
	mu           sync.RWMutex
	ports        [MaxPorts]PortRecord
	totalPowerW  float64
	connectivity ConnectivityState
	updatedAt    time.Time
}

// NewModel creates a Model with all ports at zero.
func NewModel() *Model {
	m := &Model{}
	for i := range m.ports {
		m.ports[i].ID = i
		m.ports[i].Name = portNames[i]
	}
	return m
}

// Snapshot returns a value copy of the current state.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Ports:        m.ports,
		TotalPowerW:  m.totalPowerW,
		Connectivity: m.connectivity,
		UpdatedAt:    m.updatedAt,
	}
}

// setConnectivity records the poller-derived connectivity state.
func (m *Model) setConnectivity(c ConnectivityState) {
	m.mu.Lock()
	m.connectivity = c
	m.mu.Unlock()
}

// recomputePowerLocked recalculates every port's power and the aggregate
// total from the current current/voltage values. Power is never adjusted
// incrementally. Caller must hold m.mu.
func (m *Model) recomputePowerLocked(now time.Time) {
	total := 0.0
	for i := range m.ports {
		m.ports[i].PowerW = float64(m.ports[i].CurrentMA) * float64(m.ports[i].VoltageMV) / 1e6
		total += m.ports[i].PowerW
	}
	m.totalPowerW = total
	m.updatedAt = now
}
