package discovery

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/ypwhs/cp02-monitor/internal/logging"
)

const (
	// ServiceType is the mDNS service type browsed for candidates. The hub
	// firmware advertises its HTTP server as a generic "_http._tcp" service.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultBrowseTimeout is how long a candidate harvest listens. A full
	// range sweep costs hundreds of probes, so a short browse that might
	// skip it is cheap.
	DefaultBrowseTimeout = 3 * time.Second
)

// MDNSSource harvests scan candidates from mDNS. It does not confirm
// devices; every candidate still goes through the prober, so advertising
// neighbors that are not charging hubs cost one probe each.
type MDNSSource struct {
	// Timeout is the maximum time to listen for service broadcasts.
	Timeout time.Duration
}

// NewMDNSSource creates an MDNSSource with the default browse timeout.
func NewMDNSSource() *MDNSSource {
	return &MDNSSource{Timeout: DefaultBrowseTimeout}
}

// Candidates returns IPv4 addresses of HTTP services advertised on the
// local network that fall under prefix, deduplicated and sorted. A browse
// failure returns nil; the caller falls through to the range sweep.
func (m *MDNSSource) Candidates(prefix string) []string {
	ctx, cancel := context.WithTimeout(context.Background(), m.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		logging.Debug("mDNS resolver unavailable", zap.Error(err))
		return nil
	}

	// Collection happens only once Browse has taken ownership of the
	// channel; a Browse failure leaves nothing reading from it.
	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		logging.Debug("mDNS browse failed", zap.Error(err))
		return nil
	}

	// Browse closes the entries channel when the context expires, which
	// ends the collection.
	candidates := collectCandidates(entries, prefix)
	if len(candidates) > 0 {
		logging.Debug("mDNS candidates harvested",
			zap.String("prefix", prefix),
			zap.Int("count", len(candidates)),
		)
	}
	return candidates
}

// collectCandidates drains entries until it is closed, returning the
// matching addresses deduplicated and sorted, or nil when none matched.
func collectCandidates(entries <-chan *zeroconf.ServiceEntry, prefix string) []string {
	seen := make(map[string]struct{})
	for entry := range entries {
		for _, addr := range candidatesFromEntry(entry, prefix) {
			seen[addr] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}

	candidates := make([]string, 0, len(seen))
	for addr := range seen {
		candidates = append(candidates, addr)
	}
	sort.Strings(candidates)
	return candidates
}

// candidatesFromEntry extracts the IPv4 addresses of one service entry that
// fall under prefix. Entries without IPv4 addresses yield nothing; IPv6 is
// not probed (the hub firmware binds IPv4 only).
func candidatesFromEntry(entry *zeroconf.ServiceEntry, prefix string) []string {
	var addrs []string
	for _, ip := range entry.AddrIPv4 {
		ip4 := ip.To4()
		if ip4 == nil {
			continue
		}
		addr := ip4.String()
		if strings.HasPrefix(addr, prefix+".") {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}
