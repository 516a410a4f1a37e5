// Package logging provides structured logging utilities for telecal.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Process logger setup from LOG_LEVEL / LOG_FORMAT
//   - Consistent attribute naming across the codebase
//   - Chat user ids hashed before they reach the log
//   - An adapter that routes the Telegram client's own log lines into slog
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "calendar.create_event")
//	logger.Info("event created", logging.UserHash(userID))
//
// # Security Considerations
//
//   - Chat user ids are hashed to allow correlation without exposing them
//   - Tokens are never logged directly; use SanitizeToken
package logging
