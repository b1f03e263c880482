package telemetry

import (
	"strconv"
	"strings"
	"time"
)

// Metric names in the hub's exposition output. Each line is shaped
//
//	ionbridge_port_current{id="0"} 1500
//
// with the port id as the only label and a trailing integer value.
const (
	metricCurrent  = "ionbridge_port_current"
	metricVoltage  = "ionbridge_port_voltage"
	metricState    = "ionbridge_port_state"
	metricProtocol = "ionbridge_port_fc_protocol"
)

// ApplyMetrics parses an exposition-format payload and updates the model.
// Malformed lines are skipped without aborting the pass; ids outside the
// port range are ignored. After the lines are consumed, every port's power
// and the aggregate total are recomputed in full.
//
// An empty payload is a no-op: no record is touched, so a failed fetch can
// never surface derived garbage. Returns the number of lines applied.
func (m *Model) ApplyMetrics(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	applied := 0
	for _, line := range strings.Split(string(payload), "\n") {
		metric, id, value, ok := parseMetricLine(line)
		if !ok {
			continue
		}
		if id < 0 || id >= MaxPorts {
			continue
		}

		switch metric {
		case metricCurrent:
			m.ports[id].CurrentMA = value
		case metricVoltage:
			m.ports[id].VoltageMV = value
		case metricState:
			m.ports[id].State = value
		case metricProtocol:
			m.ports[id].Protocol = value
		}
		applied++
	}

	m.recomputePowerLocked(time.Now())
	return applied
}

// parseMetricLine splits one exposition line into metric name, port id and
// integer value. ok is false for lines that are not one of the four known
// metrics or that have malformed quoting, braces or values.
func parseMetricLine(line string) (metric string, id, value int, ok bool) {
	var name string
	switch {
	case strings.HasPrefix(line, metricCurrent+"{"):
		name = metricCurrent
	case strings.HasPrefix(line, metricVoltage+"{"):
		name = metricVoltage
	case strings.HasPrefix(line, metricState+"{"):
		name = metricState
	case strings.HasPrefix(line, metricProtocol+"{"):
		name = metricProtocol
	default:
		return "", 0, 0, false
	}

	rest := line[len(name)+1:]
	if !strings.HasPrefix(rest, `id="`) {
		return "", 0, 0, false
	}
	rest = rest[len(`id="`):]

	quote := strings.IndexByte(rest, '"')
	if quote < 0 {
		return "", 0, 0, false
	}
	id, err := strconv.Atoi(rest[:quote])
	if err != nil {
		return "", 0, 0, false
	}

	rest = rest[quote+1:]
	if !strings.HasPrefix(rest, "}") {
		return "", 0, 0, false
	}
	value, err = strconv.Atoi(strings.TrimSpace(rest[1:]))
	if err != nil {
		return "", 0, 0, false
	}

	return name, id, value, true
}
