package discovery

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/ypwhs/cp02-monitor/internal/logging"
)

const (
	// DefaultServicePort is the HTTP port CP-02 charging hubs listen on.
	DefaultServicePort = 80

	// DefaultMetricsPath is the well-known metrics endpoint path.
	DefaultMetricsPath = "/metrics"

	// DeviceToken is the metric-name prefix unique to the hub firmware's
	// exposition output. A response containing it confirms the device.
	DeviceToken = "ionbridge_port_current"

	// DefaultConnectTimeout bounds the TCP connect of a single probe.
	DefaultConnectTimeout = 500 * time.Millisecond

	// DefaultReadTimeout bounds reading the probe response.
	DefaultReadTimeout = 1 * time.Second

	// DefaultMaxResponseSize caps how much of the response a probe reads.
	// The token appears in the first handful of metric lines, so anything
	// past this is noise.
	DefaultMaxResponseSize = 2048
)

// Prober performs one bounded check of a single candidate address: TCP
// connect, one GET of the metrics path, and a token match on the response.
//
// A probe never takes longer than ConnectTimeout + ReadTimeout and holds no
// state between calls. Connect refusals, timeouts and token mismatches are
// all clean failures (false), not errors; retries are the scanner's call.
type Prober struct {
	Port            int
	Path            string
	Token           string
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	MaxResponseSize int
}

// NewProber creates a Prober with the CP-02 defaults.
func NewProber() *Prober {
	return &Prober{
		Port:            DefaultServicePort,
		Path:            DefaultMetricsPath,
		Token:           DeviceToken,
		ConnectTimeout:  DefaultConnectTimeout,
		ReadTimeout:     DefaultReadTimeout,
		MaxResponseSize: DefaultMaxResponseSize,
	}
}

// Probe reports whether addr hosts a CP-02 charging hub.
func (p *Prober) Probe(addr string) bool {
	start := time.Now()
	found := p.probe(addr)
	logging.LogProbe(addr, found, time.Since(start))
	return found
}

func (p *Prober) probe(addr string) bool {
	dialer := net.Dialer{Timeout: p.ConnectTimeout}
	conn, err := dialer.Dial("tcp", net.JoinHostPort(addr, strconv.Itoa(p.Port)))
	if err != nil {
		return false
	}
	defer conn.Close()

	// One deadline covers both the request write and the response read.
	if err := conn.SetDeadline(time.Now().Add(p.ReadTimeout)); err != nil {
		return false
	}

	req := fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", p.Path, addr)
	if _, err := io.WriteString(conn, req); err != nil {
		return false
	}

	// Read up to the cap. A deadline or reset mid-read still leaves whatever
	// arrived, and the token may already be in it, so the partial response
	// is checked either way.
	body, _ := io.ReadAll(io.LimitReader(conn, int64(p.MaxResponseSize)))
	if len(body) == 0 {
		return false
	}

	return bytes.Contains(body, []byte(p.Token))
}
