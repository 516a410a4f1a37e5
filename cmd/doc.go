// Package cmd implements the command-line interface for telecal.
//
// This package provides the following commands:
//   - bot: Run the Telegram conversation with long polling
//   - web: Serve the Google OAuth authorize and callback endpoints
//   - serve: Run bot and web in one process
//   - token show|delete: Inspect or remove a stored credential
//   - version: Display version information
//
// Configuration comes from environment variables, optionally seeded from a
// .env file; see internal/config.
package cmd
