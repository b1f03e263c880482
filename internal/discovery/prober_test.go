package discovery

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

// testProber returns a Prober pointed at the test server's ephemeral port.
func testProber(t *testing.T, server *httptest.Server) *Prober {
	t.Helper()
	_, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort(%q): %v", server.Listener.Addr(), err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi(%q): %v", portStr, err)
	}

	p := NewProber()
	p.Port = port
	return p
}

func TestProbe_TokenMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != DefaultMetricsPath {
			t.Errorf("probe requested %q, want %q", r.URL.Path, DefaultMetricsPath)
		}
		_, _ = w.Write([]byte("ionbridge_port_current{id=\"0\"} 1500\n"))
	}))
	defer server.Close()

	if !testProber(t, server).Probe("127.0.0.1") {
		t.Error("Probe() = false for a host serving the device token")
	}
}

func TestProbe_TokenAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("node_cpu_seconds_total 12345\n"))
	}))
	defer server.Close()

	if testProber(t, server).Probe("127.0.0.1") {
		t.Error("Probe() = true for a host without the device token")
	}
}

func TestProbe_ConnectRefused(t *testing.T) {
	// Grab an ephemeral port and close it so nothing is listening.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	_, portStr, _ := net.SplitHostPort(listener.Addr().String())
	port, _ := strconv.Atoi(portStr)
	listener.Close()

	p := NewProber()
	p.Port = port
	if p.Probe("127.0.0.1") {
		t.Error("Probe() = true against a closed port")
	}
}

func TestProbe_TokenBeyondReadCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Pad well past the cap before the token so the bounded read
		// never sees it. Headers consume part of the budget too.
		_, _ = w.Write([]byte(strings.Repeat("# padding\n", DefaultMaxResponseSize)))
		_, _ = w.Write([]byte(DeviceToken + "{id=\"0\"} 1500\n"))
	}))
	defer server.Close()

	if testProber(t, server).Probe("127.0.0.1") {
		t.Error("Probe() = true when the token sits past the response cap")
	}
}

func TestProbe_BoundedDuration(t *testing.T) {
	// A listener that accepts but never responds. The probe must give up
	// once its read deadline expires.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			defer conn.Close()
		}
	}()

	_, portStr, _ := net.SplitHostPort(listener.Addr().String())
	port, _ := strconv.Atoi(portStr)

	p := NewProber()
	p.Port = port
	p.ConnectTimeout = 100 * time.Millisecond
	p.ReadTimeout = 100 * time.Millisecond

	start := time.Now()
	found := p.Probe("127.0.0.1")
	elapsed := time.Since(start)

	if found {
		t.Error("Probe() = true against a silent listener")
	}
	if elapsed > time.Second {
		t.Errorf("probe took %v, want bounded near ConnectTimeout+ReadTimeout", elapsed)
	}
}
