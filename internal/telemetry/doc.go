// Package telemetry polls a CP-02 charging hub's metrics endpoint and
// maintains the port state the display reads.
//
// # Model
//
// Model holds one PortRecord per charging port plus the aggregate power
// total and the connectivity state. Port power is recomputed in full from
// current and voltage on every parse pass, never adjusted incrementally,
// so the total always matches the sum of the ports in the same snapshot.
// Readers take value-copy Snapshots; the mutex inside Model is the only
// synchronization the display needs.
//
// # Parser
//
// ApplyMetrics consumes the hub's exposition-format output: four metric
// names, one quoted port-id label, a trailing integer value. Malformed
// lines are skipped rather than aborting the pass, and an empty body leaves
// the model untouched.
//
// # Poller
//
// Poller serializes fetches behind a minimum-interval gate (floored at
// 500ms) and a link gate. Failures never propagate: a non-200 status or a
// transport error flips the model to DataError, a cooldown suppresses the
// attempt immediately after a failure, and a streak of failures past the
// threshold discards the HTTP client so the next attempt starts from a
// fresh connection.
package telemetry
