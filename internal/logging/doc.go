// Package logging provides structured logging for btscout.
//
// This package wraps a global zap logger with convenience functions used by
// the discovery engine, the backends and the event server.
//
// # Log Levels
//
//   - Debug: session transitions, dropped stale callbacks, advertisement dumps
//   - Info: sessions started and finished, clients connecting
//   - Warn: retries, skipped devices, failed best-effort stops
//   - Error: failures that end a session or the server
//
// # Configuration
//
// Logging is silent unless a level is given on the command line or through
// BTSCOUT_LOG_LEVEL:
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr in console format so that scan tables written to
// stdout stay clean.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. Initialize and SetLogger
// should be called before any goroutines start logging.
package logging
