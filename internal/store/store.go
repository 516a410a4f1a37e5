package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned by Load when no credential exists for a user.
	ErrNotFound = errors.New("credential not found")

	// ErrInvalidUserID is returned for an empty user id.
	ErrInvalidUserID = errors.New("user id must not be empty")

	// ErrInvalidScope is returned for a scope that cannot be stored.
	ErrInvalidScope = errors.New("scope must not be empty or contain a comma")
)

// busyTimeout bounds how long a writer waits for the other process's lock.
const busyTimeout = 5 * time.Second

// Credential is the OAuth token set stored for one chat user.
type Credential struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	TokenURI     string
	ClientID     string
	ClientSecret string
	// Scopes are stored comma-joined, so a scope must not contain a comma.
	Scopes []string
	// Expiry is the access token expiry; zero means unknown.
	Expiry time.Time
	// UpdatedAt is set by Save.
	UpdatedAt time.Time
}

// Store persists credentials in a single SQLite table. The bot and web
// processes may open the same file concurrently; SQLite's own locking
// serializes writers.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path must not be empty")
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migration: %w", err)
	}
	return s, nil
}

// dsn builds a SQLite URI for path. The path is escaped so that '?', '#' and
// '%' in file names do not end up in the query.
func dsn(path string) string {
	escaped := (&url.URL{Path: path}).EscapedPath()
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		escaped, busyTimeout.Milliseconds())
}

// migrate creates the credentials table if it does not already exist.
func (s *Store) migrate(ctx context.Context) error {
	const createTable = `
    CREATE TABLE IF NOT EXISTS credentials (
        user_id TEXT PRIMARY KEY,
        access_token TEXT NOT NULL,
        refresh_token TEXT NOT NULL DEFAULT '',
        token_uri TEXT NOT NULL DEFAULT '',
        client_id TEXT NOT NULL DEFAULT '',
        client_secret TEXT NOT NULL DEFAULT '',
        scopes TEXT NOT NULL DEFAULT '',
        expiry INTEGER NOT NULL DEFAULT 0,
        updated_at INTEGER NOT NULL DEFAULT 0
    );
    `
	_, err := s.db.ExecContext(ctx, createTable)
	return err
}

// Save stores cred, replacing any previous row for the same user.
func (s *Store) Save(ctx context.Context, cred Credential) error {
	if cred.UserID == "" {
		return ErrInvalidUserID
	}
	for _, scope := range cred.Scopes {
		if scope == "" || strings.Contains(scope, ",") {
			return fmt.Errorf("%w: %q", ErrInvalidScope, scope)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var expiry int64
	if !cred.Expiry.IsZero() {
		expiry = cred.Expiry.Unix()
	}

	_, err = tx.ExecContext(ctx, `
    INSERT INTO credentials(user_id, access_token, refresh_token, token_uri, client_id, client_secret, scopes, expiry, updated_at)
    VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(user_id) DO UPDATE SET
        access_token = excluded.access_token,
        refresh_token = excluded.refresh_token,
        token_uri = excluded.token_uri,
        client_id = excluded.client_id,
        client_secret = excluded.client_secret,
        scopes = excluded.scopes,
        expiry = excluded.expiry,
        updated_at = excluded.updated_at`,
		cred.UserID,
		cred.AccessToken,
		cred.RefreshToken,
		cred.TokenURI,
		cred.ClientID,
		cred.ClientSecret,
		joinScopes(cred.Scopes),
		expiry,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credential: %w", err)
	}
	return nil
}

// Load returns the credential stored for userID, or ErrNotFound.
func (s *Store) Load(ctx context.Context, userID string) (Credential, error) {
	if userID == "" {
		return Credential{}, ErrInvalidUserID
	}

	row := s.db.QueryRowContext(ctx, `
    SELECT access_token, refresh_token, token_uri, client_id, client_secret, scopes, expiry, updated_at
    FROM credentials WHERE user_id = ?`, userID)

	cred := Credential{UserID: userID}
	var scopes string
	var expiry, updatedAt int64
	err := row.Scan(
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.TokenURI,
		&cred.ClientID,
		&cred.ClientSecret,
		&scopes,
		&expiry,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	if err != nil {
		return Credential{}, fmt.Errorf("failed to load credential: %w", err)
	}

	cred.Scopes = splitScopes(scopes)
	if expiry != 0 {
		cred.Expiry = time.Unix(expiry, 0)
	}
	if updatedAt != 0 {
		cred.UpdatedAt = time.Unix(updatedAt, 0)
	}
	return cred, nil
}

// Delete removes the credential stored for userID. Deleting a missing row
// returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM credentials WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func joinScopes(scopes []string) string {
	return strings.Join(scopes, ",")
}

func splitScopes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
