// Package logging provides structured logging for the CP-02 monitor.
//
// This package wraps zap logger with convenience functions for the logging
// patterns used throughout the monitor: discovery probes, network scans and
// telemetry fetches.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (per-address probes, fetch timing)
//   - Info: Normal operations (scan lifecycle, device found, retarget)
//   - Warn: Non-fatal issues (fetch failures, persistence fallback)
//   - Error: Fatal issues (startup failures)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Device found",
//	    zap.String("addr", "192.168.1.34"),
//	    zap.Duration("scan_elapsed", elapsed),
//	)
//
// # Configuration
//
// Logging is silent by default so the CLI output stays clean. Set the
// CP02_LOG_LEVEL environment variable (debug, info, warn, error) to enable
// console output, or call Initialize with an explicit level:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap
// logger handles synchronization automatically.
package logging
