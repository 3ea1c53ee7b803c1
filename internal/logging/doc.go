// Package logging provides structured logging for nodecfg.
//
// This package wraps a global zap logger with convenience functions. Logging is
// silent unless NODECFG_LOG_LEVEL is set (or a level is passed explicitly), so
// the interactive wizard can own the terminal.
//
// # Structured Logging
//
//	logging.Info("Configuration uploaded",
//	    zap.String("node", "192.168.1.50"),
//	    zap.Int("instances", 4),
//	)
//
// Document mutations are logged at debug level through LogMutation, and the
// HTTP client logs every request/response pair through LogHTTPRequest and
// LogHTTPResponse.
//
// # Configuration
//
//	if err := logging.InitializeFromEnv(); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Output goes to stderr in console format, or to the file named by
// NODECFG_LOG_FILE.
package logging
