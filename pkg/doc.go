// Package pkg provides shared utilities for the relaytmc engine and its
// transports.
//
// This package contains common functionality used across the module,
// including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for engine and transport failures
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with component context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentEngine, "response ready", "kind", "ack")
//
// Levels and formats can be parsed from configuration strings with
// [ParseLogLevel] and [ParseLogFormat].
//
// # Errors
//
// Errors are defined as sentinel values and wrapped at call sites:
//
//	if errors.Is(err, pkg.ErrOverflow) {
//	    // reject the transfer
//	}
package pkg
