package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/telecal/internal/store"
)

type memoryStore struct {
	mu    sync.Mutex
	creds map[string]store.Credential
	saves int
}

func newMemoryStore(creds ...store.Credential) *memoryStore {
	m := &memoryStore{creds: make(map[string]store.Credential)}
	for _, c := range creds {
		m.creds[c.UserID] = c
	}
	return m
}

func (m *memoryStore) Load(_ context.Context, userID string) (store.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[userID]
	if !ok {
		return store.Credential{}, store.ErrNotFound
	}
	return c, nil
}

func (m *memoryStore) Save(_ context.Context, cred store.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[cred.UserID] = cred
	m.saves++
	return nil
}

func tokenServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func expiredCredential(tokenURI string) store.Credential {
	return store.Credential{
		UserID:       "42",
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		TokenURI:     tokenURI,
		ClientID:     "cid",
		ClientSecret: "shh",
		Scopes:       []string{"https://www.googleapis.com/auth/calendar"},
		Expiry:       time.Now().Add(-time.Hour),
	}
}

func TestStoreTokenProvider_NoCredential(t *testing.T) {
	p := NewStoreTokenProvider(newMemoryStore(), nil, nil)

	_, err := p.TokenSource(context.Background(), "42")
	assert.ErrorIs(t, err, ErrUnauthorized)

	ok, err := p.HasToken(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreTokenProvider_ValidTokenNotRefreshed(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, `{}`)
	cred := expiredCredential(srv.URL)
	cred.AccessToken = "fresh"
	cred.Expiry = time.Now().Add(time.Hour)
	st := newMemoryStore(cred)
	p := NewStoreTokenProvider(st, nil, nil)

	ok, err := p.HasToken(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, ok)

	ts, err := p.TokenSource(context.Background(), "42")
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)

	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Zero(t, atomic.LoadInt32(calls))
	assert.Zero(t, st.saves)
}

func TestStoreTokenProvider_RefreshIsPersisted(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK,
		`{"access_token":"renewed","token_type":"Bearer","expires_in":3600}`)
	st := newMemoryStore(expiredCredential(srv.URL))
	p := NewStoreTokenProvider(st, nil, nil)

	ts, err := p.TokenSource(context.Background(), "42")
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "renewed", tok.AccessToken)

	// The second call is served from the cached, now valid token.
	_, err = ts.Token()
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	saved, err := st.Load(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "renewed", saved.AccessToken)
	assert.Equal(t, "refresh-1", saved.RefreshToken, "refresh token survives a response without one")
	assert.True(t, saved.Expiry.After(time.Now()))
	assert.Equal(t, 1, st.saves)
}

func TestStoreTokenProvider_RefreshFailureIsUnauthorized(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant"}`)
	st := newMemoryStore(expiredCredential(srv.URL))
	p := NewStoreTokenProvider(st, nil, nil)

	ts, err := p.TokenSource(context.Background(), "42")
	require.NoError(t, err)

	_, err = ts.Token()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)

	var retrieveErr *oauth2.RetrieveError
	assert.True(t, errors.As(err, &retrieveErr))
	assert.Zero(t, st.saves)
}

type failingStore struct{ err error }

func (f failingStore) Load(context.Context, string) (store.Credential, error) {
	return store.Credential{}, f.err
}
func (f failingStore) Save(context.Context, store.Credential) error { return f.err }

func TestStoreTokenProvider_StoreError(t *testing.T) {
	boom := errors.New("disk on fire")
	p := NewStoreTokenProvider(failingStore{err: boom}, nil, nil)

	_, err := p.TokenSource(context.Background(), "42")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrUnauthorized)

	_, err = p.HasToken(context.Background(), "42")
	assert.ErrorIs(t, err, boom)
}
