package discovery

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeProber answers true only for addresses in alive and records every call.
type fakeProber struct {
	mu    sync.Mutex
	alive map[string]bool
	calls []string
}

func (f *fakeProber) Probe(addr string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, addr)
	return f.alive[addr]
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeBook is an in-memory address book.
type fakeBook struct {
	addr    string
	saves   []string
	saveErr error
}

func (f *fakeBook) LastAddress() (string, bool) { return f.addr, f.addr != "" }

func (f *fakeBook) SetLastAddress(addr string) error {
	f.saves = append(f.saves, addr)
	if f.saveErr != nil {
		return f.saveErr
	}
	f.addr = addr
	return nil
}

// collector gathers callback results safely across shard goroutines.
type collector struct {
	mu    sync.Mutex
	hits  []string
	total int
}

func (c *collector) callback(addr string, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if found {
		c.hits = append(c.hits, addr)
	}
}

func TestScan_CachedFastPath(t *testing.T) {
	prober := &fakeProber{alive: map[string]bool{"192.168.1.42": true}}
	book := &fakeBook{addr: "192.168.1.42"}
	var results collector

	addr, err := NewScanner(prober, book, 3).Scan("192.168.1", false, results.callback)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if addr != "192.168.1.42" {
		t.Errorf("Scan() = %q, want cached address", addr)
	}
	if n := prober.callCount(); n != 1 {
		t.Errorf("probe calls = %d, want 1 (cached address only)", n)
	}
	if len(results.hits) != 1 || results.hits[0] != "192.168.1.42" {
		t.Errorf("callback hits = %v, want the cached address once", results.hits)
	}
}

func TestScan_SkipValidation(t *testing.T) {
	prober := &fakeProber{alive: map[string]bool{}}
	book := &fakeBook{addr: "192.168.1.42"}
	var results collector

	// The stored address does not answer, but the flag trusts it anyway.
	addr, err := NewScanner(prober, book, 3).Scan("192.168.1", true, results.callback)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if addr != "192.168.1.42" {
		t.Errorf("Scan() = %q, want trusted cached address", addr)
	}
	if n := prober.callCount(); n != 0 {
		t.Errorf("probe calls = %d, want 0 with skip_validation", n)
	}
}

func TestScan_StaleCacheFallsThroughToSweep(t *testing.T) {
	prober := &fakeProber{alive: map[string]bool{"10.0.0.7": true}}
	book := &fakeBook{addr: "10.0.0.200"}
	var results collector

	addr, err := NewScanner(prober, book, 3).Scan("10.0.0.", false, results.callback)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if addr != "10.0.0.7" {
		t.Errorf("Scan() = %q, want 10.0.0.7", addr)
	}
	if len(results.hits) != 1 || results.hits[0] != "10.0.0.7" {
		t.Errorf("callback hits = %v, want exactly one success", results.hits)
	}
	if book.addr != "10.0.0.7" {
		t.Errorf("address book = %q, want confirmed address persisted", book.addr)
	}
}

func TestScan_EmptyPrefix(t *testing.T) {
	prober := &fakeProber{alive: map[string]bool{}}
	if _, err := NewScanner(prober, &fakeBook{}, 3).Scan("", false, nil); err == nil {
		t.Error("Scan(\"\") = nil error, want prefix error")
	}
	if _, err := NewScanner(prober, &fakeBook{}, 3).Scan(".", false, nil); err == nil {
		t.Error("Scan(\".\") = nil error, want prefix error")
	}
}

func TestScan_NoDevice(t *testing.T) {
	prober := &fakeProber{alive: map[string]bool{}}
	var results collector

	_, err := NewScanner(prober, &fakeBook{}, 3).Scan("192.168.1", false, results.callback)
	if !errors.Is(err, ErrNoDeviceFound) {
		t.Fatalf("Scan() error = %v, want ErrNoDeviceFound", err)
	}
	if results.total != 254 {
		t.Errorf("callback invocations = %d, want 254 (full host range)", results.total)
	}
	if len(prober.calls) != 254 {
		t.Errorf("probe calls = %d, want 254", len(prober.calls))
	}

	// Every host 1..254 probed exactly once.
	seen := make(map[string]bool, len(prober.calls))
	for _, addr := range prober.calls {
		if seen[addr] {
			t.Errorf("address %s probed twice", addr)
		}
		seen[addr] = true
	}
	for host := 1; host <= 254; host++ {
		addr := fmt.Sprintf("192.168.1.%d", host)
		if !seen[addr] {
			t.Errorf("address %s never probed", addr)
		}
	}
}

func TestScan_SingleWorkerIsAscending(t *testing.T) {
	prober := &fakeProber{alive: map[string]bool{}}

	_, err := NewScanner(prober, &fakeBook{}, 1).Scan("192.168.1", false, nil)
	if !errors.Is(err, ErrNoDeviceFound) {
		t.Fatalf("Scan() error = %v, want ErrNoDeviceFound", err)
	}

	hosts := make([]int, 0, len(prober.calls))
	for _, addr := range prober.calls {
		host, err := strconv.Atoi(strings.TrimPrefix(addr, "192.168.1."))
		if err != nil {
			t.Fatalf("unexpected probe address %q", addr)
		}
		hosts = append(hosts, host)
	}
	if !sort.IntsAreSorted(hosts) {
		t.Error("single-worker sweep probed hosts out of ascending order")
	}
}

func TestScan_SweepFindsDevice(t *testing.T) {
	prober := &fakeProber{alive: map[string]bool{"192.168.1.77": true}}
	book := &fakeBook{}

	addr, err := NewScanner(prober, book, 3).Scan("192.168.1", false, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if addr != "192.168.1.77" {
		t.Errorf("Scan() = %q, want 192.168.1.77", addr)
	}
	if len(book.saves) != 1 || book.saves[0] != "192.168.1.77" {
		t.Errorf("book saves = %v, want one save of the confirmed address", book.saves)
	}
}

func TestScan_HintsProbedFirst(t *testing.T) {
	prober := &fakeProber{alive: map[string]bool{"192.168.1.23": true}}
	book := &fakeBook{}
	s := NewScanner(prober, book, 3)
	s.Hints = func(prefix string) []string {
		return []string{"192.168.1.9", "192.168.1.23"}
	}

	addr, err := s.Scan("192.168.1", false, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if addr != "192.168.1.23" {
		t.Errorf("Scan() = %q, want hinted address", addr)
	}
	// Both hints probed, sweep never started.
	if n := prober.callCount(); n != 2 {
		t.Errorf("probe calls = %d, want 2 (hints only)", n)
	}
	if book.addr != "192.168.1.23" {
		t.Errorf("address book = %q, want hinted address persisted", book.addr)
	}
}

func TestScan_PersistFailureIsNonFatal(t *testing.T) {
	prober := &fakeProber{alive: map[string]bool{"192.168.1.5": true}}
	book := &fakeBook{saveErr: errors.New("disk full")}

	addr, err := NewScanner(prober, book, 3).Scan("192.168.1", false, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if addr != "192.168.1.5" {
		t.Errorf("Scan() = %q, want confirmed address despite persist failure", addr)
	}
}
