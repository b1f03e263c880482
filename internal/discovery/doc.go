// Package discovery locates a CP-02 charging hub on the local network.
//
// The hub exposes a Prometheus-style metrics endpoint on a fixed port, and
// its exposition output carries a metric-name prefix no other device uses.
// Discovery therefore reduces to: connect, GET the well-known path, and look
// for that token.
//
// # Probe
//
// Prober checks one candidate address under hard connect and read timeouts
// with a capped response read. Failures of any kind - refused connect,
// timeout, missing token - are clean (false); a probe never errors and
// never retries.
//
// # Scan
//
// Scanner fans probes out across the host range 1..254 of a /24 prefix:
//
//  1. Cached fast path: the last confirmed address from the address book is
//     probed first. If it still answers, the range is never touched.
//  2. Hinted candidates: addresses harvested from a short mDNS browse
//     (MDNSSource) are probed ahead of the sweep.
//  3. Sharded sweep: the range is split into a small fixed number of
//     contiguous shards, one worker goroutine each. Every worker reports
//     each address through the callback and runs its shard to completion;
//     the join cannot deadlock on an early hit.
//
// The first confirmed address is written back to the address book so the
// next boot takes the fast path.
package discovery
