// Package logging provides structured logging for the Argo responder and client.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the module. It provides both general logging functions
// and specialized functions for discovery-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (probe traffic, hex dumps of bad datagrams)
//   - Info: Normal operations (transports bound, responses delivered)
//   - Warn: Non-fatal issues (delivery failures, degraded multicast joins)
//   - Error: Fatal issues for one component (transport or plugin failed to start)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Transport bound",
//	    zap.String("transport", "lan"),
//	    zap.String("interface", "eth0"),
//	)
//
// # Specialized Logging
//
// Probe Logging:
//
//	logging.LogProbe("received", probe.ID(), "lan")
//
// Delivery Logging:
//
//	logging.LogDelivery(probe.ID(), "http://10.0.0.5:4005/response", 3, err)
//
// Undecodable Payloads:
//
//	logging.LogRawBytes("Dropped datagram", data)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When no level is given and ARGO_LOG_LEVEL is unset the logger is a no-op, so
// library packages never print unless the embedding program asks for it.
// Output goes to stderr; stdout belongs to command output such as
// `argo probe --format json`.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
