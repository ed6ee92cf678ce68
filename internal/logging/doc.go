// Package logger provides structured logging for Hearth CLI commands.
//
// The logger supports multiple verbosity levels controlled by command-line
// flags. Output is formatted with semantic prefixes and colors from the
// ui package.
//
// # Verbosity Levels
//
// Logging behavior is controlled by two flags:
//
//   - --verbose: Shows info and warning messages
//   - --debug: Shows all messages including debug details
//
// Without flags, only warnings and errors are shown.
//
// # Usage
//
// Create a logger with the desired verbosity:
//
//	log := Logger{Verbose: verbose, Debug: debug}
//	log.Infof("Probing %s", device)
//
// Commands typically create a logger in their PersistentPreRun and
// pass it to internal functions.
//
// Passphrase material must never be passed to any log method, at any
// verbosity level.
package logger
