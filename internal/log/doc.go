// Package log provides secure logging built on top of the standard slog
// package.
//
// This package extends slog to provide:
//   - Automatic masking of credentials (cookies, tokens, archive service keys)
//   - Passwords embedded in archived URLs replaced before they reach the log
//   - Level, format and log file selection from the orchestration document
//
// # Usage
//
//	logger, closeLog, err := log.New(log.Options{
//	    Level:  "INFO",
//	    Format: "auto", // text on a terminal, JSON otherwise
//	    Writer: os.Stderr,
//	})
//	defer closeLog()
//
//	logger.Info("item archived", "url", "https://user:pw@example.com") // password masked
//
// Every module receives a child of this logger tagged with its name, so even
// debug output from third-party modules goes through the masking handler.
package log
