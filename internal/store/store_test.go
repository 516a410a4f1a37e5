package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "telecal.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func testCredential(userID, accessToken string) Credential {
	return Credential{
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: "refresh-" + userID,
		TokenURI:     "https://oauth2.googleapis.com/token",
		ClientID:     "client-id.apps.googleusercontent.com",
		ClientSecret: "client-secret",
		Scopes:       []string{"https://www.googleapis.com/auth/calendar", "openid"},
		Expiry:       time.Unix(1717236000, 0),
	}
}

func countRows(t *testing.T, s *Store, userID string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM credentials WHERE user_id = ?", userID).Scan(&n))
	return n
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"42", "-1001234567890", "7"} {
		want := testCredential(id, "access-"+id)
		require.NoError(t, s.Save(ctx, want))

		got, err := s.Load(ctx, id)
		require.NoError(t, err)
		assert.False(t, got.UpdatedAt.IsZero(), "Save should stamp updated_at")

		got.UpdatedAt = time.Time{}
		assert.Equal(t, want, got)
	}
}

func TestSave_Upsert(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	first := testCredential("42", "access-1")
	second := testCredential("42", "access-2")
	second.RefreshToken = ""
	second.Scopes = []string{"https://www.googleapis.com/auth/calendar"}
	second.Expiry = time.Time{}

	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	assert.Equal(t, 1, countRows(t, s, "42"))

	got, err := s.Load(ctx, "42")
	require.NoError(t, err)
	got.UpdatedAt = time.Time{}
	assert.Equal(t, second, got)
}

func TestLoad_NotFound(t *testing.T) {
	s, _ := openTestStore(t)

	_, err := s.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmptyUserID(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Save(ctx, Credential{AccessToken: "x"}), ErrInvalidUserID)
	_, err := s.Load(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidUserID)
	assert.ErrorIs(t, s.Delete(ctx, ""), ErrInvalidUserID)
}

func TestDelete(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testCredential("42", "access")))
	require.NoError(t, s.Delete(ctx, "42"))

	_, err := s.Load(ctx, "42")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "42"), ErrNotFound)
}

func TestSharedFile(t *testing.T) {
	// A second handle stands in for the other process.
	writer, path := openTestStore(t)
	reader, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close() })

	ctx := context.Background()
	require.NoError(t, writer.Save(ctx, testCredential("42", "access")))

	got, err := reader.Load(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
}

func TestConcurrentSaves(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Save(ctx, testCredential("42", "access")))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, countRows(t, s, "42"))
}

func TestPing(t *testing.T) {
	s, _ := openTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestOpen_PathWithURIMetacharacters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tele?cal#1%.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, testCredential("42", "access-42")))
	require.NoError(t, s.Close())

	_, err = os.Stat(path)
	require.NoError(t, err, "database created at the requested path")
	_, err = os.Stat(filepath.Join(dir, "tele"))
	assert.True(t, os.IsNotExist(err))

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	got, err := s.Load(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "access-42", got.AccessToken)
}

func TestSave_RejectsUnstorableScopes(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for _, scopes := range [][]string{{"a,b"}, {"openid", ""}} {
		cred := testCredential("42", "access-42")
		cred.Scopes = scopes
		assert.ErrorIs(t, s.Save(ctx, cred), ErrInvalidScope)
	}
	assert.Equal(t, 0, countRows(t, s, "42"))
}
