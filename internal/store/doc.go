// Package store persists per-user Google OAuth credentials in a local
// SQLite file.
//
// The table holds at most one row per chat user; Save replaces the whole
// row. The bot and web processes share the file, and each operation takes
// a connection from the pool for its own duration only.
package store
