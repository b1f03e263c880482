package discovery

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ypwhs/cp02-monitor/internal/logging"
)

// ErrNoDeviceFound indicates a full scan finished without confirming a
// device. Non-fatal: callers retry on the next reconnect.
var ErrNoDeviceFound = errors.New("no device found")

// Host range swept by a full scan (the .0 and .255 addresses are skipped).
const (
	hostRangeStart = 1
	hostRangeEnd   = 254
)

// Callback receives the outcome of each probed address as results arrive.
// Order across shards is unspecified; within one shard addresses are
// reported in ascending order.
type Callback func(addr string, found bool)

// prober is the single-address check the scanner fans out.
type prober interface {
	Probe(addr string) bool
}

// addressBook is the persisted last-confirmed-address record.
type addressBook interface {
	LastAddress() (string, bool)
	SetLastAddress(addr string) error
}

// Scanner locates a CP-02 charging hub on the local network.
//
// A scan first consults the address book: if the stored address still
// answers with the device token, that is the whole scan. Otherwise the host
// range 1..254 under the given prefix is partitioned into Workers contiguous
// shards swept by one goroutine each. The first confirmed address is written
// back to the address book.
type Scanner struct {
	Prober  prober
	Book    addressBook
	Workers int

	// Hints, when set, supplies candidate addresses (already inside the
	// prefix) probed before the full range sweep. Used for mDNS harvests.
	Hints func(prefix string) []string
}

// NewScanner creates a Scanner over the given prober and address book.
func NewScanner(p prober, book addressBook, workers int) *Scanner {
	if workers <= 0 {
		workers = 3
	}
	return &Scanner{Prober: p, Book: book, Workers: workers}
}

// Scan finds a device under prefix (the first three octets, with or without
// a trailing dot) and returns its confirmed address.
//
// skipValidation mirrors call sites that have already probed the stored
// address themselves: when set and the address book has an entry, that entry
// is reported through the callback without re-probing. The flag says nothing
// about whether the validation survived a network reconnect; callers that
// reconnected should pass false.
//
// fn may be nil. Scan blocks until every started worker has finished its
// shard; it never returns with probes still in flight.
func (s *Scanner) Scan(prefix string, skipValidation bool, fn Callback) (string, error) {
	if fn == nil {
		fn = func(string, bool) {}
	}

	// Fast path: the address book entry, validated or trusted as-is.
	if addr, ok := s.Book.LastAddress(); ok {
		if skipValidation {
			logging.LogScan(prefix, "cached_address_trusted", zap.String("addr", addr))
			fn(addr, true)
			return addr, nil
		}
		if s.Prober.Probe(addr) {
			logging.LogScan(prefix, "cached_address_confirmed", zap.String("addr", addr))
			fn(addr, true)
			return addr, nil
		}
		logging.LogScan(prefix, "cached_address_stale", zap.String("addr", addr))
	}

	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return "", fmt.Errorf("scan requires a network prefix")
	}

	// Hinted candidates (mDNS harvest) jump the queue.
	if s.Hints != nil {
		for _, addr := range s.Hints(prefix) {
			found := s.Prober.Probe(addr)
			fn(addr, found)
			if found {
				s.recordConfirmed(prefix, addr)
				return addr, nil
			}
		}
	}

	return s.sweep(prefix, fn)
}

// sweep probes the whole host range under prefix with Workers shard
// goroutines and blocks until all of them finish.
func (s *Scanner) sweep(prefix string, fn Callback) (string, error) {
	logging.LogScan(prefix, "sweep_started", zap.Int("workers", s.Workers))

	workers := s.Workers
	hostCount := hostRangeEnd - hostRangeStart + 1
	if workers > hostCount {
		workers = hostCount
	}
	perShard := hostCount / workers

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed string
	)

	for i := 0; i < workers; i++ {
		first := hostRangeStart + i*perShard
		last := first + perShard - 1
		if i == workers-1 {
			last = hostRangeEnd
		}

		wg.Add(1)
		go func(first, last int) {
			defer wg.Done()
			for host := first; host <= last; host++ {
				addr := fmt.Sprintf("%s.%d", prefix, host)
				found := s.Prober.Probe(addr)
				fn(addr, found)
				if found {
					mu.Lock()
					if confirmed == "" {
						confirmed = addr
					}
					mu.Unlock()
				}
			}
		}(first, last)
	}

	wg.Wait()

	if confirmed == "" {
		logging.LogScan(prefix, "sweep_exhausted")
		return "", ErrNoDeviceFound
	}

	s.recordConfirmed(prefix, confirmed)
	return confirmed, nil
}

// recordConfirmed writes the confirmed address to the address book. A
// persistence failure costs only the fast path on the next boot, so it is
// logged and swallowed.
func (s *Scanner) recordConfirmed(prefix, addr string) {
	logging.LogScan(prefix, "device_found", zap.String("addr", addr))
	if err := s.Book.SetLastAddress(addr); err != nil {
		logging.Warn("Failed to persist device address",
			zap.String("addr", addr),
			zap.Error(err),
		)
	}
}
